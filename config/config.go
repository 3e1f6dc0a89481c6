package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	// Paths to source files, the staging database and outputs
	Paths struct {
		// Land Registry price paid files, one per year
		TransactionFiles []string `env:"SQFT_TRANSACTION_FILES" envSeparator:"," envDefault:"cache/pp-2024.csv,cache/pp-2025.csv" validate:"min=1,dive,required"`

		// Directory holding one EPC certificates file (csv or zip) per borough
		BuildingDir string `env:"SQFT_BUILDING_DIR" envDefault:"cache/epc" validate:"required"`

		DatabasePath string `env:"SQFT_DB_PATH" envDefault:"cache/property-data.sqlite" validate:"required"`

		OutputPath string `env:"SQFT_OUTPUT" envDefault:"public/data/prices-sqft.json" validate:"required"`

		// Postcode district polygons the map joins statistics onto
		BoundariesPath string `env:"SQFT_BOUNDARIES" envDefault:"public/data/postcode-districts.geojson"`
		MapOutputPath  string `env:"SQFT_MAP_OUTPUT" envDefault:"public/data/prices-sqft.geojson"`
	}

	// Postcode areas accepted as London
	Areas []string `env:"SQFT_AREAS" envSeparator:"," envDefault:"E,EC,N,NW,SE,SW,W,WC,BR,CR,DA,EN,HA,IG,KT,RM,SM,TW,UB,WD" validate:"min=1,dive,alpha,max=2"`

	Matching struct {
		// Minimum score for a candidate to be accepted
		AcceptScore float64 `env:"SQFT_ACCEPT_SCORE" envDefault:"0.9" validate:"gt=0,lte=1"`

		// The shorter key must be longer than this for containment to count
		MinContainedLength int `env:"SQFT_MIN_CONTAINED_LENGTH" envDefault:"5" validate:"gte=0"`

		// Containment threshold used by the relaxed fallback pass
		RelaxedMinContainedLength int `env:"SQFT_RELAXED_MIN_CONTAINED_LENGTH" envDefault:"2" validate:"gte=0,ltefield=MinContainedLength"`

		// First pass match rate below which the fallback pass runs
		FallbackMatchRate float64 `env:"SQFT_FALLBACK_MATCH_RATE" envDefault:"0.3" validate:"gte=0,lte=1"`

		MinPricePerSqFt float64 `env:"SQFT_MIN_PRICE_PER_SQFT" envDefault:"100" validate:"gte=0"`
		MaxPricePerSqFt float64 `env:"SQFT_MAX_PRICE_PER_SQFT" envDefault:"5000" validate:"gtfield=MinPricePerSqFt"`

		// Floor areas above this are treated as data-entry errors
		MaxFloorAreaSqM float64 `env:"SQFT_MAX_FLOOR_AREA" envDefault:"1000" validate:"gt=0"`
	}

	Aggregation struct {
		BaselineDistrict      string `env:"SQFT_BASELINE_DISTRICT" envDefault:"E14" validate:"required,alphanum"`
		MinSampleSize         int    `env:"SQFT_MIN_SAMPLE_SIZE" envDefault:"5" validate:"gte=1"`
		MinCategorySampleSize int    `env:"SQFT_MIN_CATEGORY_SAMPLE_SIZE" envDefault:"3" validate:"gte=1"`
	}

	Import struct {
		// Rows per insert statement inside a file transaction
		BatchSize int `env:"SQFT_IMPORT_BATCH_SIZE" envDefault:"500" validate:"gte=1"`

		// Maximum number of retries for a failed file commit
		MaxRetries int `env:"SQFT_IMPORT_MAX_RETRIES" envDefault:"3" validate:"gte=0"`

		// Delay between retries in seconds
		RetryDelay int `env:"SQFT_IMPORT_RETRY_DELAY" envDefault:"1" validate:"gte=0"`
	}

	Server struct {
		Port           string   `env:"SQFT_PORT" envDefault:"5250" validate:"required,numeric"`
		AllowedOrigins []string `env:"SQFT_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	LogLevel  string `env:"SQFT_LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogFormat string `env:"SQFT_LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that env parsing cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
