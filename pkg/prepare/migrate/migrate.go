// Package migrate implements the schema migration preparation step.
//
// Migrations are plain SQL files applied with golang-migrate, so the step is
// safely re-runnable: already applied changes are no-ops. PostgreSQL
// instances migrate against the configured descriptor (golang-migrate uses
// advisory locks, so concurrent instances do not race); without a descriptor
// the step falls back to a local SQLite database.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/pkg/metrics"

	// Registers the "pgx" and "sqlite" database/sql drivers.
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config describes where migrations come from and what they apply to.
type Config struct {
	// DatabaseURL is the PostgreSQL connection descriptor. Empty selects
	// the SQLite fallback.
	DatabaseURL string

	// SQLitePath is the SQLite database file used without a descriptor.
	SQLitePath string

	// Path is the directory containing {version}_{title}.up.sql files.
	Path string

	// Table is the migrations bookkeeping table name.
	Table string
}

// Migrator applies pending schema migrations.
type Migrator struct {
	cfg     Config
	metrics metrics.PrepareMetrics
}

// New creates a Migrator. A nil metrics implementation disables collection.
func New(cfg Config, m metrics.PrepareMetrics) *Migrator {
	return &Migrator{
		cfg:     cfg,
		metrics: m,
	}
}

// Name implements prepare.Step.
func (m *Migrator) Name() string {
	return "migrate"
}

// Run applies all pending migrations. With no migration files configured it
// is a no-op.
func (m *Migrator) Run(ctx context.Context) error {
	found, err := hasMigrationFiles(m.cfg.Path)
	if err != nil {
		return err
	}
	if !found {
		logger.InfoCtx(ctx, "No migration files found, skipping", logger.Path(m.cfg.Path))
		return nil
	}

	db, dbName, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	inst, err := m.newMigrate(db, dbName)
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "Applying migrations", logger.Path(m.cfg.Path), "database", dbName)

	err = inst.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.InfoCtx(ctx, "No migrations to apply (database is up to date)")
	} else {
		logger.InfoCtx(ctx, "Migrations completed successfully")
	}

	version, dirty, err := inst.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		logger.InfoCtx(ctx, "No migrations applied yet")
	} else {
		logger.InfoCtx(ctx, "Current schema version",
			logger.MigrationVersion(version),
			logger.Dirty(dirty))

		if m.metrics != nil {
			m.metrics.RecordSchemaVersion(version, dirty)
		}

		if dirty {
			logger.WarnCtx(ctx, "Database schema is in dirty state - manual intervention may be required")
		}
	}

	return nil
}

// Version returns the current schema version. A database without any applied
// migration reports version 0.
func (m *Migrator) Version(ctx context.Context) (uint, bool, error) {
	db, dbName, err := m.open(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = db.Close() }()

	inst, err := m.newMigrate(db, dbName)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := inst.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			return 0, false, nil
		}
		return 0, false, err
	}
	return version, dirty, nil
}

// open connects to the migration target and returns the connection together
// with the golang-migrate database name.
func (m *Migrator) open(ctx context.Context) (*sql.DB, string, error) {
	if m.cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", m.cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("failed to ping database: %w", err)
		}
		return db, "postgres", nil
	}

	if m.cfg.SQLitePath == "" {
		return nil, "", fmt.Errorf("no migration target configured")
	}

	if dir := filepath.Dir(m.cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", m.cfg.SQLitePath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, "sqlite", nil
}

func (m *Migrator) newMigrate(db *sql.DB, dbName string) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)

	switch dbName {
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{
			MigrationsTable: m.cfg.Table,
		})
	default:
		driver, err = newSQLiteDriver(db, m.cfg.Table)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", dbName, err)
	}

	sourceDriver, err := iofs.New(os.DirFS(m.cfg.Path), ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	inst, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return inst, nil
}

// hasMigrationFiles reports whether the migrations directory contains any
// SQL files. A missing directory means there is nothing to apply.
func hasMigrationFiles(dir string) (bool, error) {
	if dir == "" {
		return false, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			return true, nil
		}
	}
	return false, nil
}
