package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"cache/pp-2024.csv", "cache/pp-2025.csv"}, cfg.Paths.TransactionFiles)
	assert.Equal(t, "cache/epc", cfg.Paths.BuildingDir)
	assert.Equal(t, "E14", cfg.Aggregation.BaselineDistrict)
	assert.Equal(t, 5, cfg.Aggregation.MinSampleSize)
	assert.Equal(t, 3, cfg.Aggregation.MinCategorySampleSize)
	assert.InDelta(t, 0.9, cfg.Matching.AcceptScore, 1e-9)
	assert.InDelta(t, 0.3, cfg.Matching.FallbackMatchRate, 1e-9)
	assert.Equal(t, 5, cfg.Matching.MinContainedLength)
	assert.InDelta(t, 100.0, cfg.Matching.MinPricePerSqFt, 1e-9)
	assert.InDelta(t, 5000.0, cfg.Matching.MaxPricePerSqFt, 1e-9)
	assert.InDelta(t, 1000.0, cfg.Matching.MaxFloorAreaSqM, 1e-9)
	assert.Contains(t, cfg.Areas, "SW")
	assert.Len(t, cfg.Areas, 20)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SQFT_TRANSACTION_FILES", "a.csv,b.csv,c.csv")
	t.Setenv("SQFT_BASELINE_DISTRICT", "SW3")
	t.Setenv("SQFT_FALLBACK_MATCH_RATE", "0.5")
	t.Setenv("SQFT_AREAS", "E,N")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv"}, cfg.Paths.TransactionFiles)
	assert.Equal(t, "SW3", cfg.Aggregation.BaselineDistrict)
	assert.InDelta(t, 0.5, cfg.Matching.FallbackMatchRate, 1e-9)
	assert.Equal(t, []string{"E", "N"}, cfg.Areas)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "accept score above one", key: "SQFT_ACCEPT_SCORE", value: "1.5"},
		{name: "inverted outlier bounds", key: "SQFT_MAX_PRICE_PER_SQFT", value: "50"},
		{name: "relaxed threshold above strict", key: "SQFT_RELAXED_MIN_CONTAINED_LENGTH", value: "9"},
		{name: "zero minimum sample", key: "SQFT_MIN_SAMPLE_SIZE", value: "0"},
		{name: "unknown log level", key: "SQFT_LOG_LEVEL", value: "verbose"},
		{name: "area with digits", key: "SQFT_AREAS", value: "E1"},
		{name: "unparsable number", key: "SQFT_MIN_SAMPLE_SIZE", value: "five"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := LoadConfig()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("SQFT_LOG_LEVEL", "debug")
	t.Setenv("SQFT_LOG_FORMAT", "text")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger = (&Config{LogLevel: "", LogFormat: "json"}).NewLogger()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
