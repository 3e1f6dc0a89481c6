package processor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"londonsqft/server/config"
	"londonsqft/server/internal/database"
)

// MockDB is a mock implementation of Transactor
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error {
	args := m.Called(fc)
	return args.Error(0)
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Import.BatchSize = 100
	cfg.Import.MaxRetries = 3
	cfg.Import.RetryDelay = 0
	return cfg
}

func TestNewBatchProcessor(t *testing.T) {
	// Setup
	mockDB := &MockDB{}
	cfg := newTestConfig()
	logger := logrus.New()

	// Test
	processor := NewBatchProcessor(mockDB, cfg, logger)

	// Assert
	assert.NotNil(t, processor)
	assert.Equal(t, mockDB, processor.db)
	assert.Equal(t, cfg, processor.config)
	assert.Equal(t, logger, processor.logger)
	assert.Equal(t, 100, processor.BatchSize())
}

func TestBatchProcessor_BatchSizeDefault(t *testing.T) {
	processor := NewBatchProcessor(&MockDB{}, &config.Config{}, logrus.New())
	assert.Equal(t, 500, processor.BatchSize())
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	// Setup
	mockDB := &MockDB{}
	processor := NewBatchProcessor(mockDB, newTestConfig(), logrus.New())
	file := &database.SourceFile{Stage: "parse-transactions", Path: "pp-2024.csv"}
	write := func(tx *gorm.DB) error { return nil }

	// Test successful processing
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()
	err := processor.ProcessFile(context.Background(), file, write)
	assert.NoError(t, err)

	// Test retry on failure
	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error")).Times(4)
	err = processor.ProcessFile(context.Background(), file, write)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit pp-2024.csv after 4 attempts")
	mockDB.AssertExpectations(t)
}

func TestBatchProcessor_RecoversAfterTransientErrors(t *testing.T) {
	mockDB := &MockDB{}
	processor := NewBatchProcessor(mockDB, newTestConfig(), logrus.New())

	mockDB.On("Transaction", mock.Anything).Return(errors.New("database is locked")).Twice()
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()

	err := processor.Process(context.Background(), "observations", func(tx *gorm.DB) error { return nil })
	assert.NoError(t, err)
	mockDB.AssertNumberOfCalls(t, "Transaction", 3)
}

func TestBatchProcessor_StopsRetryingWhenCancelled(t *testing.T) {
	mockDB := &MockDB{}
	cfg := newTestConfig()
	cfg.Import.RetryDelay = 60
	processor := NewBatchProcessor(mockDB, cfg, logrus.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error")).Once()
	err := processor.Process(ctx, "observations", func(tx *gorm.DB) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	mockDB.AssertNumberOfCalls(t, "Transaction", 1)
}
