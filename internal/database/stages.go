package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"londonsqft/server/internal/models"
)

// GetStageStatus returns the stored status, or NotStarted when the stage has
// never run.
func (d *Database) GetStageStatus(stage models.Stage) (models.StageStatus, error) {
	var run StageRun
	err := d.db.Where("stage = ?", string(stage)).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StageStatus{Stage: stage, State: models.StateNotStarted}, nil
	}
	if err != nil {
		return models.StageStatus{}, fmt.Errorf("failed to load status of %s: %w", stage, err)
	}
	return run.Status(), nil
}

// GetStageStatuses returns every stage in execution order
func (d *Database) GetStageStatuses() ([]models.StageStatus, error) {
	statuses := make([]models.StageStatus, 0, len(models.Stages))
	for _, stage := range models.Stages {
		s, err := d.GetStageStatus(stage)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// SaveStageStatus upserts status within tx
func SaveStageStatus(tx *gorm.DB, status models.StageStatus) error {
	run := newStageRun(status)
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stage"}},
		UpdateAll: true,
	}).Create(&run).Error
	if err != nil {
		return fmt.Errorf("failed to save status of %s: %w", status.Stage, err)
	}
	return nil
}

// BeginStage marks stage as running
func (d *Database) BeginStage(stage models.Stage) error {
	return SaveStageStatus(d.db, models.StageStatus{Stage: stage, State: models.StateRunning})
}

// CompleteStage marks a stage completed inside tx, so the status commits
// together with the stage's last output.
func CompleteStage(tx *gorm.DB, status models.StageStatus) error {
	status.State = models.StateCompleted
	return SaveStageStatus(tx, status)
}

// ResetStage discards a stage's staged output and marks it not started
func (d *Database) ResetStage(stage models.Stage) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var err error
		switch stage {
		case models.StageParseTransactions:
			err = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&TransactionRow{}).Error
		case models.StageParseBuildings:
			err = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&BuildingRow{}).Error
		case models.StageMatch:
			err = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ObservationRow{}).Error
		case models.StageAggregate:
			err = tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&DistrictStatisticRow{}).Error
		}
		if err != nil {
			return fmt.Errorf("failed to clear output of %s: %w", stage, err)
		}
		if err := tx.Where("stage = ?", string(stage)).Delete(&SourceFile{}).Error; err != nil {
			return fmt.Errorf("failed to clear source files of %s: %w", stage, err)
		}
		return SaveStageStatus(tx, models.StageStatus{Stage: stage, State: models.StateNotStarted})
	})
}
