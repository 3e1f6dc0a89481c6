package models

import "time"

// PropertyCategory is the coarse dwelling type shared by both datasets
type PropertyCategory string

const (
	CategoryDetached     PropertyCategory = "detached"
	CategorySemiDetached PropertyCategory = "semi-detached"
	CategoryTerraced     PropertyCategory = "terraced"
	CategoryFlat         PropertyCategory = "flat"
	CategoryOther        PropertyCategory = "other"
)

// IsHouse reports whether the category counts towards the houses split
func (c PropertyCategory) IsHouse() bool {
	switch c {
	case CategoryDetached, CategorySemiDetached, CategoryTerraced:
		return true
	}
	return false
}

// IsFlat reports whether the category counts towards the flats split
func (c PropertyCategory) IsFlat() bool {
	return c == CategoryFlat
}

// CategoryFromCode maps a Land Registry property type code (D/S/T/F/O)
func CategoryFromCode(code string) (PropertyCategory, bool) {
	switch code {
	case "D":
		return CategoryDetached, true
	case "S":
		return CategorySemiDetached, true
	case "T":
		return CategoryTerraced, true
	case "F":
		return CategoryFlat, true
	case "O":
		return CategoryOther, true
	}
	return CategoryOther, false
}

// TransactionRecord is one London sale from the price paid data
type TransactionRecord struct {
	Price             int64            `json:"price"`
	TransactionDate   string           `json:"transaction_date"`
	Postcode          string           `json:"postcode"`
	District          string           `json:"district"`
	Category          PropertyCategory `json:"property_category"`
	PAON              string           `json:"paon"`
	SAON              string           `json:"saon,omitempty"`
	Street            string           `json:"street"`
	NormalizedAddress string           `json:"normalized_address"`
}

// BuildingRecord is one energy certificate with a usable floor area
type BuildingRecord struct {
	Postcode          string           `json:"postcode"`
	NormalizedAddress string           `json:"normalized_address"`
	FloorAreaSqM      float64          `json:"floor_area_sqm"`
	Category          PropertyCategory `json:"property_category"`
	PropertyType      string           `json:"property_type"`
	CertificateDate   time.Time        `json:"certificate_date"`
	ExternalID        string           `json:"external_id,omitempty"`
}

// MatchedObservation links a sale to the floor area of the same dwelling
type MatchedObservation struct {
	Price               int64            `json:"price"`
	FloorAreaSqM        float64          `json:"floor_area_sqm"`
	PricePerSqFt        float64          `json:"price_per_sqft"`
	District            string           `json:"district"`
	TransactionCategory PropertyCategory `json:"transaction_category"`
	BuildingCategory    PropertyCategory `json:"building_category"`
	Score               float64          `json:"score"`
	Fallback            bool             `json:"fallback"`
}
