package store

import (
	"fmt"

	"gorm.io/gorm"
)

// cityColumns is the column set the current CityRecord expects
var cityColumns = []string{"id", "name", "population", "country"}

// ensureCitySchema creates the cities table, recreating it when an older
// incompatible layout is found. Existing rows are lost in that case.
func ensureCitySchema(db *gorm.DB) error {
	migrator := db.Migrator()

	if migrator.HasTable(&CityRecord{}) && !hasColumns(migrator, cityColumns) {
		if err := migrator.DropTable(&CityRecord{}); err != nil {
			return fmt.Errorf("failed to drop incompatible cities table: %w", err)
		}
	}

	if err := db.AutoMigrate(&CityRecord{}); err != nil {
		return fmt.Errorf("failed to migrate cities table: %w", err)
	}
	return nil
}

func hasColumns(migrator gorm.Migrator, columns []string) bool {
	for _, col := range columns {
		if !migrator.HasColumn(&CityRecord{}, col) {
			return false
		}
	}
	return true
}
