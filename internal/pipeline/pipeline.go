// Package pipeline runs the staged batch that turns raw sales and energy
// certificates into district statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"londonsqft/server/config"
	"londonsqft/server/internal/aggregator"
	"londonsqft/server/internal/database"
	"londonsqft/server/internal/exporter"
	"londonsqft/server/internal/geometry"
	"londonsqft/server/internal/index"
	"londonsqft/server/internal/ingest"
	"londonsqft/server/internal/matcher"
	"londonsqft/server/internal/models"
	"londonsqft/server/internal/postcode"
	"londonsqft/server/internal/processor"
)

// ErrDependencyFailed marks a stage skipped because a stage it requires did
// not complete
var ErrDependencyFailed = errors.New("required stage did not complete")

// Options control which completed stages are run again
type Options struct {
	// Force reruns every stage
	Force bool

	// ForceStages reruns the named stages and everything downstream of them
	ForceStages []models.Stage
}

// Outcome is what a run did with one stage
type Outcome string

const (
	OutcomeRan               Outcome = "ran"
	OutcomeAlreadyCompleted  Outcome = "already_completed"
	OutcomeFailed            Outcome = "failed"
	OutcomeSkippedDependency Outcome = "skipped_dependency"
)

type StageReport struct {
	Stage   models.Stage
	Outcome Outcome
	Status  models.StageStatus
	Err     error
}

// Summary reports a run
type Summary struct {
	Stages       []StageReport
	Transactions ingest.Counts
	Buildings    ingest.Counts
	Match        *matcher.Summary
	Districts    int
}

// Report returns the report for stage, if the run reached it
func (s *Summary) Report(stage models.Stage) (StageReport, bool) {
	for _, r := range s.Stages {
		if r.Stage == stage {
			return r, true
		}
	}
	return StageReport{}, false
}

type Pipeline struct {
	cfg       *config.Config
	db        *database.Database
	processor *processor.BatchProcessor
	london    *postcode.AllowList
	logger    *logrus.Logger
}

func New(cfg *config.Config, db *database.Database, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Pipeline{
		cfg:       cfg,
		db:        db,
		processor: processor.NewBatchProcessor(db, cfg, logger),
		london:    postcode.NewAllowList(cfg.Areas),
		logger:    logger,
	}
}

// MatcherConfig maps configuration onto matcher settings
func MatcherConfig(cfg *config.Config) matcher.Config {
	return matcher.Config{
		AcceptScore:               cfg.Matching.AcceptScore,
		MinContainedLength:        cfg.Matching.MinContainedLength,
		RelaxedMinContainedLength: cfg.Matching.RelaxedMinContainedLength,
		FallbackMatchRate:         cfg.Matching.FallbackMatchRate,
		MinPricePerSqFt:           cfg.Matching.MinPricePerSqFt,
		MaxPricePerSqFt:           cfg.Matching.MaxPricePerSqFt,
	}
}

// AggregatorConfig maps configuration onto aggregator settings
func AggregatorConfig(cfg *config.Config) aggregator.Config {
	return aggregator.Config{
		BaselineDistrict:      cfg.Aggregation.BaselineDistrict,
		MinSampleSize:         cfg.Aggregation.MinSampleSize,
		MinCategorySampleSize: cfg.Aggregation.MinCategorySampleSize,
	}
}

// Run executes every stage in order. Completed stages are skipped unless
// forced. A failed stage skips the stages that require it while independent
// stages still run; all failures are returned joined.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := p.applyForce(opts); err != nil {
		return nil, err
	}

	summary := &Summary{}
	incomplete := make(map[models.Stage]bool)
	var errs []error

	for _, stage := range models.Stages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report := StageReport{Stage: stage}
		for _, r := range Requires(stage) {
			if incomplete[r] {
				report.Outcome = OutcomeSkippedDependency
				report.Err = fmt.Errorf("%s: %w: %s", stage, ErrDependencyFailed, r)
				break
			}
		}
		if report.Outcome == OutcomeSkippedDependency {
			incomplete[stage] = true
			summary.Stages = append(summary.Stages, report)
			p.logger.WithField("stage", stage).Warn("Skipping stage, a required stage did not complete")
			continue
		}

		status, err := p.db.GetStageStatus(stage)
		if err != nil {
			return summary, err
		}
		if p.upToDate(status) {
			report.Outcome = OutcomeAlreadyCompleted
			report.Status = status
			summary.Stages = append(summary.Stages, report)
			p.logger.WithField("stage", stage).Info("Stage already completed, skipping")
			continue
		}

		status, err = p.runStage(ctx, stage, summary)
		report.Status = status
		if err != nil {
			report.Outcome = OutcomeFailed
			report.Err = fmt.Errorf("%s: %w", stage, err)
			incomplete[stage] = true
			errs = append(errs, report.Err)
			p.logger.WithError(err).WithField("stage", stage).Error("Stage failed")
		} else {
			report.Outcome = OutcomeRan
		}
		summary.Stages = append(summary.Stages, report)
	}

	p.logSummary(summary)
	return summary, errors.Join(errs...)
}

func (p *Pipeline) applyForce(opts Options) error {
	targets := opts.ForceStages
	if opts.Force {
		targets = models.Stages
	}
	reset := make(map[models.Stage]bool)
	for _, stage := range targets {
		for _, s := range append([]models.Stage{stage}, Downstream(stage)...) {
			if reset[s] {
				continue
			}
			if err := p.db.ResetStage(s); err != nil {
				return err
			}
			reset[s] = true
		}
	}
	return nil
}

func (p *Pipeline) upToDate(status models.StageStatus) bool {
	if status.State != models.StateCompleted {
		return false
	}
	if status.Stage == models.StageExport {
		if _, err := os.Stat(p.cfg.Paths.OutputPath); err != nil {
			return false
		}
	}
	return true
}

// runStage clears downstream output, marks the stage running and runs it
func (p *Pipeline) runStage(ctx context.Context, stage models.Stage, summary *Summary) (models.StageStatus, error) {
	for _, d := range Downstream(stage) {
		if err := p.db.ResetStage(d); err != nil {
			return models.StageStatus{}, err
		}
	}
	if err := p.db.BeginStage(stage); err != nil {
		return models.StageStatus{}, err
	}
	p.logger.WithField("stage", stage).Info("Running stage")

	switch stage {
	case models.StageParseTransactions:
		return p.parseTransactions(ctx, summary)
	case models.StageParseBuildings:
		return p.parseBuildings(ctx, summary)
	case models.StageMatch:
		return p.match(ctx, summary)
	case models.StageAggregate:
		return p.aggregate(ctx, summary)
	case models.StageExport:
		return p.export(ctx, summary)
	}
	return models.StageStatus{}, fmt.Errorf("unknown stage %s", stage)
}

// readFunc reads one input file, returning its counts and a writer that
// stores the accepted rows
type readFunc func(path string) (ingest.Counts, func(tx *gorm.DB) error, error)

// importFiles commits each file in its own transaction. Files a previous
// interrupted run already committed are counted but not read again.
func (p *Pipeline) importFiles(ctx context.Context, stage models.Stage, paths []string, read readFunc) (ingest.Counts, error) {
	var total ingest.Counts
	committed, err := p.db.CommittedFiles(stage)
	if err != nil {
		return total, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if f, ok := committed[path]; ok {
			total.Add(ingest.Counts{Read: f.RowsRead, Malformed: f.Malformed, Filtered: f.Filtered, Accepted: f.Accepted})
			p.logger.WithFields(logrus.Fields{"stage": stage, "file": path}).Info("File already committed, skipping")
			continue
		}

		counts, write, err := read(path)
		if err != nil {
			return total, err
		}
		file := &database.SourceFile{
			Stage:     string(stage),
			Path:      path,
			RowsRead:  counts.Read,
			Malformed: counts.Malformed,
			Filtered:  counts.Filtered,
			Accepted:  counts.Accepted,
		}
		if err := p.processor.ProcessFile(ctx, file, write); err != nil {
			return total, err
		}
		total.Add(counts)

		p.logger.WithFields(logrus.Fields{
			"stage":     stage,
			"file":      path,
			"read":      counts.Read,
			"malformed": counts.Malformed,
			"filtered":  counts.Filtered,
			"accepted":  counts.Accepted,
		}).Info("Imported file")
	}
	return total, nil
}

func (p *Pipeline) completeParse(ctx context.Context, stage models.Stage, counts ingest.Counts) (models.StageStatus, error) {
	status := models.StageStatus{
		Stage:       stage,
		State:       models.StateCompleted,
		RowsRead:    counts.Read,
		RowsSkipped: counts.Skipped(),
		RowsWritten: counts.Accepted,
	}
	err := p.processor.Process(ctx, string(stage)+" status", func(tx *gorm.DB) error {
		return database.CompleteStage(tx, status)
	})
	return status, err
}

func (p *Pipeline) parseTransactions(ctx context.Context, summary *Summary) (models.StageStatus, error) {
	paths := p.cfg.Paths.TransactionFiles
	if err := ingest.CheckFiles(paths); err != nil {
		return models.StageStatus{}, err
	}

	reader := ingest.NewTransactionReader(p.london, p.logger)
	counts, err := p.importFiles(ctx, models.StageParseTransactions, paths, func(path string) (ingest.Counts, func(tx *gorm.DB) error, error) {
		var rows []database.TransactionRow
		counts, err := reader.ReadFile(path, func(rec models.TransactionRecord) error {
			rows = append(rows, database.NewTransactionRow(path, rec))
			return nil
		})
		return counts, func(tx *gorm.DB) error {
			return database.InsertTransactions(tx, rows, p.processor.BatchSize())
		}, err
	})
	summary.Transactions = counts
	if err != nil {
		return models.StageStatus{}, err
	}
	return p.completeParse(ctx, models.StageParseTransactions, counts)
}

func (p *Pipeline) parseBuildings(ctx context.Context, summary *Summary) (models.StageStatus, error) {
	paths, err := ingest.BuildingFiles(p.cfg.Paths.BuildingDir)
	if err != nil {
		return models.StageStatus{}, err
	}

	reader := ingest.NewBuildingReader(p.london, p.cfg.Matching.MaxFloorAreaSqM, p.logger)
	counts, err := p.importFiles(ctx, models.StageParseBuildings, paths, func(path string) (ingest.Counts, func(tx *gorm.DB) error, error) {
		var rows []database.BuildingRow
		counts, err := reader.ReadFile(path, func(rec models.BuildingRecord) error {
			rows = append(rows, database.NewBuildingRow(path, rec))
			return nil
		})
		return counts, func(tx *gorm.DB) error {
			return database.InsertBuildings(tx, rows, p.processor.BatchSize())
		}, err
	})
	summary.Buildings = counts
	if err != nil {
		return models.StageStatus{}, err
	}
	return p.completeParse(ctx, models.StageParseBuildings, counts)
}

func (p *Pipeline) match(ctx context.Context, summary *Summary) (models.StageStatus, error) {
	transactions, err := p.db.LoadTransactions()
	if err != nil {
		return models.StageStatus{}, err
	}
	buildings, err := p.db.LoadBuildings()
	if err != nil {
		return models.StageStatus{}, err
	}

	idx := index.New(buildings)
	p.logger.WithFields(logrus.Fields{
		"buildings": idx.Len(),
		"postcodes": idx.PostcodeCount(),
	}).Info("Indexed buildings by postcode")

	result := matcher.New(MatcherConfig(p.cfg), idx, p.logger).MatchAll(transactions)
	summary.Match = &result.Summary

	s := result.Summary
	detail := fmt.Sprintf("no_building=%d no_address_match=%d first_pass=%d fallback=%d outliers=%d fallback_ran=%t",
		s.NoBuildingForPostcode, s.NoAddressMatch, s.FirstPassLinked, s.FallbackLinked, s.Outliers, s.FallbackRan)
	status := models.StageStatus{
		Stage:       models.StageMatch,
		State:       models.StateCompleted,
		RowsRead:    s.Transactions,
		RowsSkipped: s.Transactions - s.Observations,
		RowsWritten: s.Observations,
		MatchRate:   s.MatchRate,
		Detail:      detail,
	}
	err = p.processor.Process(ctx, "observations", func(tx *gorm.DB) error {
		if err := database.ReplaceObservations(tx, result.Observations, p.processor.BatchSize()); err != nil {
			return err
		}
		return database.CompleteStage(tx, status)
	})
	return status, err
}

func (p *Pipeline) aggregate(ctx context.Context, summary *Summary) (models.StageStatus, error) {
	observations, err := p.db.LoadObservations()
	if err != nil {
		return models.StageStatus{}, err
	}
	transactions, err := p.db.TransactionCountsByDistrict()
	if err != nil {
		return models.StageStatus{}, err
	}

	stats, err := aggregator.New(AggregatorConfig(p.cfg), p.logger).Aggregate(observations, transactions)
	if err != nil {
		return models.StageStatus{}, err
	}
	summary.Districts = len(stats)

	status := models.StageStatus{
		Stage:       models.StageAggregate,
		State:       models.StateCompleted,
		RowsRead:    len(observations),
		RowsWritten: len(stats),
	}
	err = p.processor.Process(ctx, "district statistics", func(tx *gorm.DB) error {
		if err := database.ReplaceStatistics(tx, stats); err != nil {
			return err
		}
		return database.CompleteStage(tx, status)
	})
	return status, err
}

func (p *Pipeline) export(ctx context.Context, summary *Summary) (models.StageStatus, error) {
	stats, err := p.db.GetDistrictStatistics()
	if err != nil {
		return models.StageStatus{}, err
	}
	if !hasDistrict(stats, p.cfg.Aggregation.BaselineDistrict) {
		return models.StageStatus{}, fmt.Errorf("%w: %s", aggregator.ErrNoBaselineStatistic, p.cfg.Aggregation.BaselineDistrict)
	}
	summary.Districts = len(stats)

	if err := exporter.Write(p.cfg.Paths.OutputPath, stats); err != nil {
		return models.StageStatus{}, err
	}

	status := models.StageStatus{
		Stage:       models.StageExport,
		State:       models.StateCompleted,
		RowsRead:    len(stats),
		RowsWritten: len(stats),
		Detail:      p.cfg.Paths.OutputPath,
	}
	err = p.processor.Process(ctx, "export status", func(tx *gorm.DB) error {
		return database.CompleteStage(tx, status)
	})
	return status, err
}

func hasDistrict(stats []models.DistrictStatistic, district string) bool {
	for _, s := range stats {
		if s.District == district {
			return true
		}
	}
	return false
}

// ExportMap joins the stored statistics onto the district boundaries and
// writes the map GeoJSON. It requires a completed aggregate stage.
func (p *Pipeline) ExportMap() (int, error) {
	status, err := p.db.GetStageStatus(models.StageAggregate)
	if err != nil {
		return 0, err
	}
	if status.State != models.StateCompleted {
		return 0, fmt.Errorf("%w: %s", ErrDependencyFailed, models.StageAggregate)
	}
	stats, err := p.db.GetDistrictStatistics()
	if err != nil {
		return 0, err
	}
	return geometry.NewDistrictMapper(p.logger).SaveDistrictMap(p.cfg.Paths.BoundariesPath, p.cfg.Paths.MapOutputPath, stats)
}

func (p *Pipeline) logSummary(s *Summary) {
	for _, r := range s.Stages {
		entry := p.logger.WithFields(logrus.Fields{
			"stage":        r.Stage,
			"outcome":      r.Outcome,
			"rows_read":    r.Status.RowsRead,
			"rows_skipped": r.Status.RowsSkipped,
			"rows_written": r.Status.RowsWritten,
		})
		if r.Err != nil {
			entry = entry.WithError(r.Err)
		}
		entry.Info("Stage summary")
	}

	fields := logrus.Fields{
		"transactions_read":    s.Transactions.Read,
		"transactions_skipped": s.Transactions.Skipped(),
		"buildings_read":       s.Buildings.Read,
		"buildings_skipped":    s.Buildings.Skipped(),
		"districts":            s.Districts,
	}
	if s.Match != nil {
		fields["match_rate"] = s.Match.MatchRate
		fields["fallback_ran"] = s.Match.FallbackRan
	}
	p.logger.WithFields(fields).Info("Run summary")
}
