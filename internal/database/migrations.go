package database

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateSchema creates or updates every staging table
func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&TransactionRow{},
		&BuildingRow{},
		&ObservationRow{},
		&DistrictStatisticRow{},
		&StageRun{},
		&SourceFile{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return RunMigrations(db)
}

// RunMigrations adds indexes the lookups rely on
func RunMigrations(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_transactions_postcode_address
			ON transactions(postcode, normalized_address)`,
		`CREATE INDEX IF NOT EXISTS idx_buildings_postcode_address
			ON buildings(postcode, normalized_address)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
