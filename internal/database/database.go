package database

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by single-row lookups that match nothing
var ErrNotFound = errors.New("record not found")

type Database struct {
	db *gorm.DB
}

// NewDatabase opens the staging database at dbPath and migrates its schema
func NewDatabase(dbPath string) (*Database, error) {
	db, err := open(dbPath, true)
	if err != nil {
		return nil, err
	}
	if err := MigrateSchema(db); err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// NewTestDB opens a private in-memory database without migrating it
func NewTestDB() (*gorm.DB, error) {
	return open(":memory:", false)
}

// NewTestDatabase returns a migrated in-memory Database
func NewTestDatabase() (*Database, error) {
	db, err := NewTestDB()
	if err != nil {
		return nil, err
	}
	if err := MigrateSchema(db); err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func open(dsn string, wal bool) (*gorm.DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA synchronous = NORMAL", "PRAGMA cache_size = -200000"}
	if wal {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Transaction runs fc in one database transaction
func (d *Database) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	return d.db.Transaction(fc, opts...)
}
