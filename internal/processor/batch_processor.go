package processor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"londonsqft/server/config"
	"londonsqft/server/internal/database"
)

// Transactor is the part of *gorm.DB the processor needs
type Transactor interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// BatchProcessor commits units of work, usually one input file, in a single
// transaction and retries failed commits
type BatchProcessor struct {
	db     Transactor
	logger *logrus.Logger
	config *config.Config
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db Transactor, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	return &BatchProcessor{
		db:     db,
		config: config,
		logger: logger,
	}
}

// BatchSize is the number of rows per insert statement
func (p *BatchProcessor) BatchSize() int {
	if p.config.Import.BatchSize <= 0 {
		return 500
	}
	return p.config.Import.BatchSize
}

// ProcessFile runs write and records file in the same transaction. Either
// every row of the file is committed together with its bookkeeping row, or
// nothing is.
func (p *BatchProcessor) ProcessFile(ctx context.Context, file *database.SourceFile, write func(tx *gorm.DB) error) error {
	return p.processBatch(ctx, file.Path, func(tx *gorm.DB) error {
		if err := write(tx); err != nil {
			return err
		}
		saved := *file
		return database.InsertSourceFile(tx, &saved)
	})
}

// Process runs fn in one transaction with the same retry policy
func (p *BatchProcessor) Process(ctx context.Context, label string, fn func(tx *gorm.DB) error) error {
	return p.processBatch(ctx, label, fn)
}

// processBatch handles a single unit of work with transaction and retry logic
func (p *BatchProcessor) processBatch(ctx context.Context, label string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt <= p.config.Import.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying %s, attempt %d of %d", label, attempt, p.config.Import.MaxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(p.config.Import.RetryDelay) * time.Second):
			}
		}

		err = p.db.Transaction(fn)
		if err == nil {
			p.logger.Debugf("Committed %s", label)
			return nil
		}

		p.logger.Errorf("Commit of %s failed: %v", label, err)
	}

	return fmt.Errorf("failed to commit %s after %d attempts: %w", label, p.config.Import.MaxRetries+1, err)
}
