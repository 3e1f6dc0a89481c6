// Package aggregator turns matched observations into per-district median
// price per square foot figures.
package aggregator

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"londonsqft/server/internal/models"
)

// ErrNoBaselineStatistic is returned when the baseline district does not
// meet the minimum sample, leaving nothing to compare against.
var ErrNoBaselineStatistic = errors.New("baseline district has no qualifying statistic")

type Config struct {
	BaselineDistrict      string
	MinSampleSize         int
	MinCategorySampleSize int
}

func DefaultConfig() Config {
	return Config{
		BaselineDistrict:      "E14",
		MinSampleSize:         5,
		MinCategorySampleSize: 3,
	}
}

type Aggregator struct {
	cfg    Config
	logger *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Aggregator{cfg: cfg, logger: logger}
}

type districtSamples struct {
	all        []float64
	houses     []float64
	flats      []float64
	floorAreas []float64
}

// Aggregate computes one statistic per district with enough observations,
// sorted by district. transactions holds the number of parsed transactions
// per district and feeds the match rate; missing districts get a rate of 0.
func (a *Aggregator) Aggregate(observations []models.MatchedObservation, transactions map[string]int) ([]models.DistrictStatistic, error) {
	samples := make(map[string]*districtSamples)
	for _, obs := range observations {
		s, ok := samples[obs.District]
		if !ok {
			s = &districtSamples{}
			samples[obs.District] = s
		}
		s.all = append(s.all, obs.PricePerSqFt)
		s.floorAreas = append(s.floorAreas, obs.FloorAreaSqM)
		switch {
		case obs.TransactionCategory.IsHouse():
			s.houses = append(s.houses, obs.PricePerSqFt)
		case obs.TransactionCategory.IsFlat():
			s.flats = append(s.flats, obs.PricePerSqFt)
		}
	}

	districts := make([]string, 0, len(samples))
	for d := range samples {
		districts = append(districts, d)
	}
	sort.Strings(districts)

	stats := make([]models.DistrictStatistic, 0, len(districts))
	var baseline *models.DistrictStatistic
	skipped := 0
	for _, d := range districts {
		s := samples[d]
		if len(s.all) < a.cfg.MinSampleSize {
			skipped++
			continue
		}
		stats = append(stats, a.statistic(d, s, transactions[d]))
	}
	for i := range stats {
		if stats[i].District == a.cfg.BaselineDistrict {
			baseline = &stats[i]
		}
	}
	if baseline == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBaselineStatistic, a.cfg.BaselineDistrict)
	}

	base := *baseline
	for i := range stats {
		stats[i].PercentDiff = percentDiff(stats[i].MedianPricePerSqFt, base.MedianPricePerSqFt)
		stats[i].PercentDiffHouses = optionalPercentDiff(stats[i].MedianHousesPricePerSqFt, base.MedianHousesPricePerSqFt)
		stats[i].PercentDiffFlats = optionalPercentDiff(stats[i].MedianFlatsPricePerSqFt, base.MedianFlatsPricePerSqFt)
	}

	a.logger.WithFields(logrus.Fields{
		"observations":         len(observations),
		"districts":            len(stats),
		"districts_too_sparse": skipped,
		"baseline":             a.cfg.BaselineDistrict,
		"baseline_median":      base.MedianPricePerSqFt,
	}).Info("Aggregated district statistics")

	return stats, nil
}

func (a *Aggregator) statistic(district string, s *districtSamples, transactions int) models.DistrictStatistic {
	median, _ := Median(s.all)
	floorArea, _ := Median(s.floorAreas)

	stat := models.DistrictStatistic{
		District:           district,
		MedianPricePerSqFt: Round(median, 0),
		SampleSize:         len(s.all),
		HousesSampleSize:   len(s.houses),
		FlatsSampleSize:    len(s.flats),
		MedianFloorAreaSqM: Round(floorArea, 0),
	}
	if transactions > 0 {
		stat.MatchRate = Round(float64(len(s.all))/float64(transactions), 2)
	}
	stat.MedianHousesPricePerSqFt = a.categoryMedian(s.houses)
	stat.MedianFlatsPricePerSqFt = a.categoryMedian(s.flats)
	return stat
}

func (a *Aggregator) categoryMedian(values []float64) *float64 {
	if len(values) < a.cfg.MinCategorySampleSize {
		return nil
	}
	m, ok := Median(values)
	if !ok {
		return nil
	}
	m = Round(m, 0)
	return &m
}

func percentDiff(value, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return math.Floor((value-baseline)/baseline*1000+0.5) / 10
}

func optionalPercentDiff(value, baseline *float64) *float64 {
	if value == nil || baseline == nil {
		return nil
	}
	d := percentDiff(*value, *baseline)
	return &d
}
