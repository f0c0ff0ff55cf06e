package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/evyataryagoni/cityapp/internal/config"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/store"
)

// This tool loads cities from a CSV file into the configured City Store
// Usage: go run ./cmd/seed [-csv data/cities.csv] [-force]
func main() {
	appConfig := config.Load()

	csvPath := flag.String("csv", appConfig.SeedPath, "CSV file with name,population,country rows")
	force := flag.Bool("force", false, "insert even when the store already has cities")
	flag.Parse()

	fmt.Println("🔄 Loading cities into the city store...")

	cityStore, err := store.NewCityStore(store.CityStoreConfig{
		Type:       appConfig.CityStoreType,
		SQLitePath: appConfig.SQLitePath,
		MySQLDSN:   appConfig.MySQLDSN,
	}, store.Options{Logger: logger.New(logger.Config{Level: appConfig.LogLevel, Pretty: true})})
	if err != nil {
		log.Fatalf("Failed to open city store: %v", err)
	}
	defer cityStore.Close()

	fmt.Printf("✅ Connected to %s city store\n", appConfig.CityStoreType)
	fmt.Printf("📁 Loading data from %s...\n", *csvPath)

	ctx := context.Background()
	var n int
	if *force {
		n, err = store.Seed(ctx, cityStore, *csvPath)
	} else {
		n, err = store.SeedIfEmpty(ctx, cityStore, *csvPath)
	}
	if err != nil {
		log.Fatalf("Failed to load CSV data: %v", err)
	}

	if n == 0 && !*force {
		fmt.Println("ℹ️  Store already has cities, nothing loaded (use -force to insert anyway)")
		return
	}
	fmt.Printf("✅ Loaded %d cities\n", n)
}
