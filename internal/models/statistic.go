package models

// DistrictStatistic is the per-district figure consumed by the map. Field
// names follow the map's JSON contract.
type DistrictStatistic struct {
	District                 string   `json:"district"`
	MedianPricePerSqFt       float64  `json:"medianPricePerSqft"`
	MedianHousesPricePerSqFt *float64 `json:"medianHousesPricePerSqft"`
	MedianFlatsPricePerSqFt  *float64 `json:"medianFlatsPricePerSqft"`
	SampleSize               int      `json:"sampleSize"`
	HousesSampleSize         int      `json:"housesSampleSize"`
	FlatsSampleSize          int      `json:"flatsSampleSize"`
	MatchRate                float64  `json:"matchRate"`
	MedianFloorAreaSqM       float64  `json:"medianFloorArea"`
	PercentDiff              float64  `json:"percentDiff"`
	PercentDiffHouses        *float64 `json:"percentDiffHouses"`
	PercentDiffFlats         *float64 `json:"percentDiffFlats"`
}
