// Package matcher links sale transactions to energy certificates at the same
// postcode by comparing normalized addresses.
package matcher

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"londonsqft/server/internal/index"
	"londonsqft/server/internal/models"
)

// SqFtPerSqM converts floor areas to square feet
const SqFtPerSqM = 10.7639

type Config struct {
	AcceptScore               float64
	MinContainedLength        int
	RelaxedMinContainedLength int
	FallbackMatchRate         float64
	MinPricePerSqFt           float64
	MaxPricePerSqFt           float64
}

func DefaultConfig() Config {
	return Config{
		AcceptScore:               0.9,
		MinContainedLength:        5,
		RelaxedMinContainedLength: 2,
		FallbackMatchRate:         0.3,
		MinPricePerSqFt:           100,
		MaxPricePerSqFt:           5000,
	}
}

// Summary counts what happened to every transaction in a match run
type Summary struct {
	Transactions          int     `json:"transactions"`
	NoBuildingForPostcode int     `json:"no_building_for_postcode"`
	NoAddressMatch        int     `json:"no_address_match"`
	FirstPassLinked       int     `json:"first_pass_linked"`
	FallbackLinked        int     `json:"fallback_linked"`
	Outliers              int     `json:"outliers"`
	Observations          int     `json:"observations"`
	FirstPassMatchRate    float64 `json:"first_pass_match_rate"`
	MatchRate             float64 `json:"match_rate"`
	FallbackRan           bool    `json:"fallback_ran"`
}

// Linked is every transaction that found a building, outliers included
func (s Summary) Linked() int {
	return s.FirstPassLinked + s.FallbackLinked
}

type Result struct {
	Observations []models.MatchedObservation
	Summary      Summary
}

type Matcher struct {
	cfg    Config
	index  *index.PostcodeIndex
	logger *logrus.Logger
}

func New(cfg Config, idx *index.PostcodeIndex, logger *logrus.Logger) *Matcher {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Matcher{cfg: cfg, index: idx, logger: logger}
}

type candidate struct {
	building models.BuildingRecord
	score    float64
}

// better orders candidates: score, newest certificate, smallest identifier,
// smallest address, smallest floor area. A missing identifier ranks after any
// present one so certificates without a UPRN never win on an empty string.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if !a.building.CertificateDate.Equal(b.building.CertificateDate) {
		return a.building.CertificateDate.After(b.building.CertificateDate)
	}
	if a.building.ExternalID != b.building.ExternalID {
		if a.building.ExternalID == "" || b.building.ExternalID == "" {
			return b.building.ExternalID == ""
		}
		return a.building.ExternalID < b.building.ExternalID
	}
	if c := strings.Compare(a.building.NormalizedAddress, b.building.NormalizedAddress); c != 0 {
		return c < 0
	}
	return a.building.FloorAreaSqM < b.building.FloorAreaSqM
}

// Best returns the highest ranked candidate for tx scored with minContained.
// ok is false when no candidate reaches the accept score.
func (m *Matcher) Best(tx models.TransactionRecord, minContained int) (models.BuildingRecord, float64, bool) {
	var best candidate
	found := false
	for _, b := range m.index.Candidates(tx.Postcode) {
		c := candidate{building: b, score: Score(tx.NormalizedAddress, b.NormalizedAddress, minContained)}
		if c.score < m.cfg.AcceptScore {
			continue
		}
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best.building, best.score, found
}

type link struct {
	obs     models.MatchedObservation
	outlier bool
}

// MatchAll links every transaction. Observations follow transaction order.
// Match rates count observations, so links dropped as price outliers do not
// hold the first pass above the fallback threshold.
func (m *Matcher) MatchAll(txs []models.TransactionRecord) Result {
	summary := Summary{Transactions: len(txs)}
	links := make([]*link, len(txs))
	var unmatched []int

	firstPassObservations := 0
	for i, tx := range txs {
		if len(m.index.Candidates(tx.Postcode)) == 0 {
			summary.NoBuildingForPostcode++
			continue
		}
		b, score, ok := m.Best(tx, m.cfg.MinContainedLength)
		if !ok {
			unmatched = append(unmatched, i)
			continue
		}
		links[i] = m.link(tx, b, score, false)
		summary.FirstPassLinked++
		if !links[i].outlier {
			firstPassObservations++
		}
	}

	summary.FirstPassMatchRate = rate(firstPassObservations, summary.Transactions)
	if summary.Transactions > 0 && summary.FirstPassMatchRate < m.cfg.FallbackMatchRate {
		summary.FallbackRan = true
		m.logger.WithFields(logrus.Fields{
			"match_rate": summary.FirstPassMatchRate,
			"threshold":  m.cfg.FallbackMatchRate,
			"remaining":  len(unmatched),
		}).Info("Match rate low, running relaxed containment pass")

		for _, i := range unmatched {
			b, score, ok := m.Best(txs[i], m.cfg.RelaxedMinContainedLength)
			if !ok {
				continue
			}
			links[i] = m.link(txs[i], b, score, true)
			summary.FallbackLinked++
		}
	}
	summary.NoAddressMatch = len(unmatched) - summary.FallbackLinked

	observations := make([]models.MatchedObservation, 0, summary.Linked())
	for _, l := range links {
		if l == nil {
			continue
		}
		if l.outlier {
			summary.Outliers++
			continue
		}
		observations = append(observations, l.obs)
	}
	summary.Observations = len(observations)
	summary.MatchRate = rate(summary.Observations, summary.Transactions)

	m.logger.WithFields(logrus.Fields{
		"transactions":      summary.Transactions,
		"no_building":       summary.NoBuildingForPostcode,
		"no_address_match":  summary.NoAddressMatch,
		"first_pass_linked": summary.FirstPassLinked,
		"fallback_linked":   summary.FallbackLinked,
		"outliers":          summary.Outliers,
		"observations":      summary.Observations,
		"match_rate":        summary.MatchRate,
	}).Info("Matching complete")

	return Result{Observations: observations, Summary: summary}
}

func (m *Matcher) link(tx models.TransactionRecord, b models.BuildingRecord, score float64, fallback bool) *link {
	obs := observe(tx, b, score, fallback)
	return &link{
		obs:     obs,
		outlier: obs.PricePerSqFt < m.cfg.MinPricePerSqFt || obs.PricePerSqFt > m.cfg.MaxPricePerSqFt,
	}
}

// PricePerSqFt converts a price and floor area in square metres
func PricePerSqFt(price int64, floorAreaSqM float64) float64 {
	return float64(price) / (floorAreaSqM * SqFtPerSqM)
}

func observe(tx models.TransactionRecord, b models.BuildingRecord, score float64, fallback bool) models.MatchedObservation {
	return models.MatchedObservation{
		Price:               tx.Price,
		FloorAreaSqM:        b.FloorAreaSqM,
		PricePerSqFt:        PricePerSqFt(tx.Price, b.FloorAreaSqM),
		District:            tx.District,
		TransactionCategory: tx.Category,
		BuildingCategory:    b.Category,
		Score:               score,
		Fallback:            fallback,
	}
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
