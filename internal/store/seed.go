package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/evyataryagoni/cityapp/internal/models"
)

// SeedTarget is the part of a City Store needed for seeding
type SeedTarget interface {
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, city models.City) (int64, error)
}

// LoadCitiesCSV reads cities from a CSV file
//
// CSV Format: name,population,country (first row is a header)
// Example: Paris,2148000,France
//
// Rows without exactly 3 columns are skipped. A population that does not
// parse as a non-negative integer is stored as 0.
func LoadCitiesCSV(filePath string) ([]models.City, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	cities := make([]models.City, 0, len(records)-1)
	for i, record := range records {
		if i == 0 || len(record) != 3 {
			continue
		}
		cities = append(cities, models.City{
			Name:       strings.TrimSpace(record[0]),
			Population: ParsePopulation(record[1]),
			Country:    strings.TrimSpace(record[2]),
		})
	}

	return cities, nil
}

// ParsePopulation converts user or file input into a population, falling back to 0
func ParsePopulation(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SeedIfEmpty loads the CSV into the store when it holds no cities yet
// Returns the number of cities inserted
func SeedIfEmpty(ctx context.Context, target SeedTarget, csvPath string) (int, error) {
	n, err := target.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	return Seed(ctx, target, csvPath)
}

// Seed inserts every city from the CSV file
func Seed(ctx context.Context, target SeedTarget, csvPath string) (int, error) {
	cities, err := LoadCitiesCSV(csvPath)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, city := range cities {
		if _, err := target.Insert(ctx, city); err != nil {
			return count, fmt.Errorf("failed to store city %s: %w", city.Name, err)
		}
		count++
	}
	return count, nil
}
