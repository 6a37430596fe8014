// Package journal persists a ledger of startup runs: which preparation
// steps ran, how the worker pool behaved and how each run ended. The
// ledger is bookkeeping only. Writes that fail are logged and dropped so
// they can never interfere with startup, and a nil *Journal is valid with
// every method a no-op.
package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contains journal configuration.
type Config struct {
	// Enabled turns the ledger on. When false Open returns a nil journal.
	Enabled bool

	// Path is the SQLite database file used when no DatabaseURL is set.
	Path string

	// DatabaseURL switches the ledger to PostgreSQL. Usually the same
	// descriptor the application database uses.
	DatabaseURL string
}

// Journal is a run ledger backed by SQLite or PostgreSQL via GORM.
type Journal struct {
	db *gorm.DB

	// runID is set once by BeginRun, before workers start.
	runID string
}

// Open connects the ledger and creates its schema via GORM AutoMigrate.
// Returns (nil, nil) when the journal is disabled.
func Open(cfg Config) (*Journal, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var dialector gorm.Dialector
	switch {
	case cfg.DatabaseURL != "":
		dialector = postgres.Open(cfg.DatabaseURL)

	case cfg.Path != "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		// SQLite pragmas for better concurrent access:
		// - journal_mode(WAL): status queries read while the run writes
		// - busy_timeout(5000): wait up to 5 seconds when locked
		dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	default:
		return nil, fmt.Errorf("journal path is required")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// DB returns the underlying GORM database connection.
// This is useful for advanced queries or testing.
func (j *Journal) DB() *gorm.DB {
	if j == nil {
		return nil
	}
	return j.db
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}
