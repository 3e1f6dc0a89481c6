package geometry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"londonsqft/server/internal/models"
)

const boundaries = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "E14", "area": "Isle of Dogs"},
     "geometry": {"type": "Polygon", "coordinates": [[[-0.03, 51.49], [0.01, 51.49], [0.01, 51.51], [-0.03, 51.51], [-0.03, 51.49]]]}},
    {"type": "Feature", "properties": {"POSTCODE": "n1"},
     "geometry": {"type": "Polygon", "coordinates": [[[-0.11, 51.53], [-0.08, 51.53], [-0.08, 51.55], [-0.11, 51.55], [-0.11, 51.53]]]}},
    {"type": "Feature", "properties": {"name": "SE1"},
     "geometry": {"type": "Polygon", "coordinates": [[[-0.11, 51.49], [-0.08, 51.49], [-0.08, 51.51], [-0.11, 51.51], [-0.11, 51.49]]]}},
    {"type": "Feature", "properties": {"name": 42},
     "geometry": {"type": "Point", "coordinates": [0, 51.5]}}
  ]
}`

func ptr(v float64) *float64 {
	return &v
}

func testStats() []models.DistrictStatistic {
	return []models.DistrictStatistic{
		{District: "E14", MedianPricePerSqFt: 800, SampleSize: 5, MedianFlatsPricePerSqFt: ptr(900), PercentDiffFlats: ptr(0)},
		{District: "N1", MedianPricePerSqFt: 1250, SampleSize: 6, PercentDiff: 56.3},
	}
}

func TestDistrictKey(t *testing.T) {
	tests := []struct {
		name       string
		properties geojson.Properties
		expected   string
	}{
		{"Name", geojson.Properties{"name": "E14"}, "E14"},
		{"Postcode fallback", geojson.Properties{"POSTCODE": " sw1 "}, "SW1"},
		{"Name wins", geojson.Properties{"name": "N1", "POSTCODE": "N2"}, "N1"},
		{"Blank name falls back", geojson.Properties{"name": "", "POSTCODE": "N2"}, "N2"},
		{"Not a string", geojson.Properties{"name": 7}, ""},
		{"No properties", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := geojson.NewFeature(orb.Point{0, 0})
			f.Properties = tt.properties
			assert.Equal(t, tt.expected, DistrictKey(f))
		})
	}
}

func TestJoinStatistics(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(boundaries))
	require.NoError(t, err)

	joined := JoinStatistics(fc, testStats())

	require.Len(t, joined.Features, 2)
	assert.Len(t, fc.Features, 4, "input is not modified")
	assert.NotContains(t, fc.Features[0].Properties, "sampleSize")

	e14 := joined.Features[0]
	assert.Equal(t, "Isle of Dogs", e14.Properties["area"])
	assert.Equal(t, 800.0, e14.Properties["medianPricePerSqft"])
	assert.Equal(t, 900.0, e14.Properties["medianFlatsPricePerSqft"])
	assert.Nil(t, e14.Properties["medianHousesPricePerSqft"])
	assert.Contains(t, e14.Properties, "medianHousesPricePerSqft")
	assert.Equal(t, geojson.BBox{-0.03, 51.49, 0.01, 51.51}, e14.BBox)

	n1 := joined.Features[1]
	assert.Equal(t, "N1", n1.Properties["district"])
	assert.Equal(t, 56.3, n1.Properties["percentDiff"])
}

func TestSaveDistrictMap(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "postcode-districts.geojson")
	out := filepath.Join(dir, "public", "prices-sqft.geojson")
	require.NoError(t, os.WriteFile(in, []byte(boundaries), 0644))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	n, err := NewDistrictMapper(logger).SaveDistrictMap(in, out, testStats())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	written, err := LoadFeatureCollection(out)
	require.NoError(t, err)
	require.Len(t, written.Features, 2)
	assert.Equal(t, "E14", DistrictKey(written.Features[0]))
	assert.Equal(t, 5.0, written.Features[0].Properties["sampleSize"])
}

func TestSaveDistrictMapMissingBoundaries(t *testing.T) {
	dir := t.TempDir()
	_, err := NewDistrictMapper(nil).SaveDistrictMap(filepath.Join(dir, "missing.geojson"), filepath.Join(dir, "out.geojson"), testStats())
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out.geojson"))
	assert.True(t, os.IsNotExist(statErr))
}
