package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"londonsqft/server/internal/models"
)

// CommittedFiles returns the source files a stage has already committed,
// keyed by path.
func (d *Database) CommittedFiles(stage models.Stage) (map[string]SourceFile, error) {
	var files []SourceFile
	if err := d.db.Where("stage = ?", string(stage)).Order("id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to load source files: %w", err)
	}
	committed := make(map[string]SourceFile, len(files))
	for _, f := range files {
		committed[f.Path] = f
	}
	return committed, nil
}

// InsertSourceFile records that every row of a file is committed
func InsertSourceFile(tx *gorm.DB, file *SourceFile) error {
	if err := tx.Create(file).Error; err != nil {
		return fmt.Errorf("failed to record source file %s: %w", file.Path, err)
	}
	return nil
}

func InsertTransactions(tx *gorm.DB, rows []TransactionRow, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert transactions: %w", err)
	}
	return nil
}

func InsertBuildings(tx *gorm.DB, rows []BuildingRow, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert buildings: %w", err)
	}
	return nil
}

// LoadTransactions returns every staged transaction in insertion order
func (d *Database) LoadTransactions() ([]models.TransactionRecord, error) {
	var rows []TransactionRow
	if err := d.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	records := make([]models.TransactionRecord, len(rows))
	for i, r := range rows {
		records[i] = r.Record()
	}
	return records, nil
}

// LoadBuildings returns every staged certificate in insertion order
func (d *Database) LoadBuildings() ([]models.BuildingRecord, error) {
	var rows []BuildingRow
	if err := d.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load buildings: %w", err)
	}
	records := make([]models.BuildingRecord, len(rows))
	for i, r := range rows {
		records[i] = r.Record()
	}
	return records, nil
}

// TransactionCountsByDistrict counts staged transactions per district
func (d *Database) TransactionCountsByDistrict() (map[string]int, error) {
	sqlDB, err := d.db.DB()
	if err != nil {
		return nil, err
	}

	rows, err := sqlDB.Query(`
		SELECT district, COUNT(*)
		FROM transactions
		GROUP BY district
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var district string
		var n int
		if err := rows.Scan(&district, &n); err != nil {
			return nil, err
		}
		counts[district] = n
	}
	return counts, rows.Err()
}

// ReplaceObservations swaps the stored observations for obs within tx
func ReplaceObservations(tx *gorm.DB, obs []models.MatchedObservation, batchSize int) error {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ObservationRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear observations: %w", err)
	}
	if len(obs) == 0 {
		return nil
	}
	rows := make([]ObservationRow, len(obs))
	for i, o := range obs {
		rows[i] = newObservationRow(o)
	}
	if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert observations: %w", err)
	}
	return nil
}

// LoadObservations returns the stored observations in insertion order
func (d *Database) LoadObservations() ([]models.MatchedObservation, error) {
	var rows []ObservationRow
	if err := d.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	obs := make([]models.MatchedObservation, len(rows))
	for i, r := range rows {
		obs[i] = r.Observation()
	}
	return obs, nil
}

// ReplaceStatistics swaps the stored district statistics within tx
func ReplaceStatistics(tx *gorm.DB, stats []models.DistrictStatistic) error {
	if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&DistrictStatisticRow{}).Error; err != nil {
		return fmt.Errorf("failed to clear statistics: %w", err)
	}
	if len(stats) == 0 {
		return nil
	}
	rows := make([]DistrictStatisticRow, len(stats))
	for i, s := range stats {
		rows[i] = newDistrictStatisticRow(s)
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert statistics: %w", err)
	}
	return nil
}

// GetDistrictStatistics returns every statistic ordered by district
func (d *Database) GetDistrictStatistics() ([]models.DistrictStatistic, error) {
	var rows []DistrictStatisticRow
	if err := d.db.Order("district").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}
	stats := make([]models.DistrictStatistic, len(rows))
	for i, r := range rows {
		stats[i] = r.Statistic()
	}
	return stats, nil
}

// GetDistrictStatistic returns ErrNotFound for districts without a statistic
func (d *Database) GetDistrictStatistic(district string) (*models.DistrictStatistic, error) {
	var row DistrictStatisticRow
	err := d.db.Where("district = ?", district).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load statistic for %s: %w", district, err)
	}
	s := row.Statistic()
	return &s, nil
}
