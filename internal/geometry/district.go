package geometry

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"londonsqft/server/internal/exporter"
	"londonsqft/server/internal/models"
)

// DistrictMapper joins district statistics onto postcode district boundaries
// for the map.
type DistrictMapper struct {
	logger *logrus.Logger
}

func NewDistrictMapper(logger *logrus.Logger) *DistrictMapper {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &DistrictMapper{logger: logger}
}

// DistrictKey returns the district a boundary feature describes, read from
// its name property or, failing that, its POSTCODE property.
func DistrictKey(f *geojson.Feature) string {
	for _, key := range []string{"name", "POSTCODE"} {
		if v, ok := f.Properties[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.ToUpper(strings.TrimSpace(v))
		}
	}
	return ""
}

// StatisticProperties flattens a statistic into feature properties using
// the same names as the JSON export. Missing category figures become null.
func StatisticProperties(s models.DistrictStatistic) geojson.Properties {
	return geojson.Properties{
		"district":                 s.District,
		"medianPricePerSqft":       s.MedianPricePerSqFt,
		"medianHousesPricePerSqft": nullable(s.MedianHousesPricePerSqFt),
		"medianFlatsPricePerSqft":  nullable(s.MedianFlatsPricePerSqFt),
		"sampleSize":               s.SampleSize,
		"housesSampleSize":         s.HousesSampleSize,
		"flatsSampleSize":          s.FlatsSampleSize,
		"matchRate":                s.MatchRate,
		"medianFloorArea":          s.MedianFloorAreaSqM,
		"percentDiff":              s.PercentDiff,
		"percentDiffHouses":        nullable(s.PercentDiffHouses),
		"percentDiffFlats":         nullable(s.PercentDiffFlats),
	}
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// JoinStatistics returns a new collection with one feature per boundary that
// has a statistic. Boundaries without one are dropped, input order is kept
// and fc is not modified.
func JoinStatistics(fc *geojson.FeatureCollection, stats []models.DistrictStatistic) *geojson.FeatureCollection {
	byDistrict := make(map[string]models.DistrictStatistic, len(stats))
	for _, s := range stats {
		byDistrict[s.District] = s
	}

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		s, ok := byDistrict[DistrictKey(f)]
		if !ok {
			continue
		}

		joined := geojson.NewFeature(f.Geometry)
		joined.ID = f.ID
		if f.Geometry != nil {
			joined.BBox = geojson.NewBBox(f.Geometry.Bound())
		}
		for k, v := range f.Properties {
			joined.Properties[k] = v
		}
		for k, v := range StatisticProperties(s) {
			joined.Properties[k] = v
		}
		out.Append(joined)
	}
	return out
}

// LoadFeatureCollection reads a GeoJSON feature collection from path
func LoadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundaries: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundaries %s: %w", path, err)
	}
	return fc, nil
}

// SaveDistrictMap joins stats onto the boundaries at boundariesPath and
// atomically writes the result to outputPath. It returns the number of
// features written.
func (dm *DistrictMapper) SaveDistrictMap(boundariesPath, outputPath string, stats []models.DistrictStatistic) (int, error) {
	fc, err := LoadFeatureCollection(boundariesPath)
	if err != nil {
		return 0, err
	}

	joined := JoinStatistics(fc, stats)
	data, err := joined.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if err := exporter.WriteFileAtomic(outputPath, append(data, '\n')); err != nil {
		return 0, err
	}

	dm.logger.WithFields(logrus.Fields{
		"boundaries": len(fc.Features),
		"features":   len(joined.Features),
		"statistics": len(stats),
		"output":     outputPath,
	}).Info("Saved district map")
	return len(joined.Features), nil
}
