package database

import (
	"time"

	"londonsqft/server/internal/models"
)

// TransactionRow stages one parsed sale
type TransactionRow struct {
	ID                uint   `gorm:"primaryKey"`
	SourcePath        string `gorm:"index;not null"`
	Price             int64  `gorm:"not null"`
	TransactionDate   string
	Postcode          string `gorm:"not null"`
	District          string `gorm:"index;not null"`
	Category          string
	PAON              string `gorm:"column:paon"`
	SAON              string `gorm:"column:saon"`
	Street            string
	NormalizedAddress string
}

func (TransactionRow) TableName() string { return "transactions" }

// BuildingRow stages one parsed energy certificate
type BuildingRow struct {
	ID                uint   `gorm:"primaryKey"`
	SourcePath        string `gorm:"index;not null"`
	Postcode          string `gorm:"not null"`
	NormalizedAddress string
	FloorAreaSqM      float64 `gorm:"column:floor_area_sqm;not null"`
	Category          string
	PropertyType      string
	CertificateDate   time.Time
	ExternalID        string
}

func (BuildingRow) TableName() string { return "buildings" }

// ObservationRow is one linked sale that passed the price bounds
type ObservationRow struct {
	ID                  uint    `gorm:"primaryKey"`
	Price               int64   `gorm:"not null"`
	FloorAreaSqM        float64 `gorm:"column:floor_area_sqm;not null"`
	PricePerSqFt        float64 `gorm:"column:price_per_sqft;not null"`
	District            string  `gorm:"index;not null"`
	TransactionCategory string
	BuildingCategory    string
	Score               float64
	Fallback            bool
}

func (ObservationRow) TableName() string { return "observations" }

// DistrictStatisticRow holds the aggregate for one district
type DistrictStatisticRow struct {
	District                 string   `gorm:"primaryKey"`
	MedianPricePerSqFt       float64  `gorm:"column:median_price_per_sqft"`
	MedianHousesPricePerSqFt *float64 `gorm:"column:median_houses_price_per_sqft"`
	MedianFlatsPricePerSqFt  *float64 `gorm:"column:median_flats_price_per_sqft"`
	SampleSize               int
	HousesSampleSize         int
	FlatsSampleSize          int
	MatchRate                float64
	MedianFloorAreaSqM       float64 `gorm:"column:median_floor_area_sqm"`
	PercentDiff              float64
	PercentDiffHouses        *float64
	PercentDiffFlats         *float64
}

func (DistrictStatisticRow) TableName() string { return "district_statistics" }

// StageRun is the persisted status of one pipeline stage
type StageRun struct {
	Stage       string `gorm:"primaryKey"`
	State       string `gorm:"not null"`
	RowsRead    int
	RowsSkipped int
	RowsWritten int
	MatchRate   float64
	Detail      string
	UpdatedAt   time.Time
}

func (StageRun) TableName() string { return "stage_runs" }

// SourceFile records an input file whose rows were committed by a stage
type SourceFile struct {
	ID         uint   `gorm:"primaryKey"`
	Stage      string `gorm:"uniqueIndex:idx_source_files_stage_path;not null"`
	Path       string `gorm:"uniqueIndex:idx_source_files_stage_path;not null"`
	RowsRead   int
	Malformed  int
	Filtered   int
	Accepted   int
	ImportedAt time.Time `gorm:"autoCreateTime"`
}

func (SourceFile) TableName() string { return "source_files" }

func NewTransactionRow(source string, r models.TransactionRecord) TransactionRow {
	return TransactionRow{
		SourcePath:        source,
		Price:             r.Price,
		TransactionDate:   r.TransactionDate,
		Postcode:          r.Postcode,
		District:          r.District,
		Category:          string(r.Category),
		PAON:              r.PAON,
		SAON:              r.SAON,
		Street:            r.Street,
		NormalizedAddress: r.NormalizedAddress,
	}
}

func (r TransactionRow) Record() models.TransactionRecord {
	return models.TransactionRecord{
		Price:             r.Price,
		TransactionDate:   r.TransactionDate,
		Postcode:          r.Postcode,
		District:          r.District,
		Category:          models.PropertyCategory(r.Category),
		PAON:              r.PAON,
		SAON:              r.SAON,
		Street:            r.Street,
		NormalizedAddress: r.NormalizedAddress,
	}
}

func NewBuildingRow(source string, r models.BuildingRecord) BuildingRow {
	return BuildingRow{
		SourcePath:        source,
		Postcode:          r.Postcode,
		NormalizedAddress: r.NormalizedAddress,
		FloorAreaSqM:      r.FloorAreaSqM,
		Category:          string(r.Category),
		PropertyType:      r.PropertyType,
		CertificateDate:   r.CertificateDate,
		ExternalID:        r.ExternalID,
	}
}

func (r BuildingRow) Record() models.BuildingRecord {
	return models.BuildingRecord{
		Postcode:          r.Postcode,
		NormalizedAddress: r.NormalizedAddress,
		FloorAreaSqM:      r.FloorAreaSqM,
		Category:          models.PropertyCategory(r.Category),
		PropertyType:      r.PropertyType,
		CertificateDate:   r.CertificateDate.UTC(),
		ExternalID:        r.ExternalID,
	}
}

func newObservationRow(o models.MatchedObservation) ObservationRow {
	return ObservationRow{
		Price:               o.Price,
		FloorAreaSqM:        o.FloorAreaSqM,
		PricePerSqFt:        o.PricePerSqFt,
		District:            o.District,
		TransactionCategory: string(o.TransactionCategory),
		BuildingCategory:    string(o.BuildingCategory),
		Score:               o.Score,
		Fallback:            o.Fallback,
	}
}

func (r ObservationRow) Observation() models.MatchedObservation {
	return models.MatchedObservation{
		Price:               r.Price,
		FloorAreaSqM:        r.FloorAreaSqM,
		PricePerSqFt:        r.PricePerSqFt,
		District:            r.District,
		TransactionCategory: models.PropertyCategory(r.TransactionCategory),
		BuildingCategory:    models.PropertyCategory(r.BuildingCategory),
		Score:               r.Score,
		Fallback:            r.Fallback,
	}
}

func newDistrictStatisticRow(s models.DistrictStatistic) DistrictStatisticRow {
	return DistrictStatisticRow(s)
}

func (r DistrictStatisticRow) Statistic() models.DistrictStatistic {
	return models.DistrictStatistic(r)
}

func newStageRun(s models.StageStatus) StageRun {
	return StageRun{
		Stage:       string(s.Stage),
		State:       string(s.State),
		RowsRead:    s.RowsRead,
		RowsSkipped: s.RowsSkipped,
		RowsWritten: s.RowsWritten,
		MatchRate:   s.MatchRate,
		Detail:      s.Detail,
	}
}

func (r StageRun) Status() models.StageStatus {
	return models.StageStatus{
		Stage:       models.Stage(r.Stage),
		State:       models.StageState(r.State),
		RowsRead:    r.RowsRead,
		RowsSkipped: r.RowsSkipped,
		RowsWritten: r.RowsWritten,
		MatchRate:   r.MatchRate,
		Detail:      r.Detail,
		UpdatedAt:   r.UpdatedAt,
	}
}
