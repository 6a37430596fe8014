package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/glebarez/go-sqlite"
)

func writeMigration(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestMigrator_Name(t *testing.T) {
	m := New(Config{}, nil)
	assert.Equal(t, "migrate", m.Name())
}

func TestRun_AppliesMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.up.sql",
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)
	writeMigration(t, dir, "0002_indexes.up.sql",
		`CREATE INDEX idx_users_name ON users (name);`)

	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{SQLitePath: dbPath, Path: dir}, nil)

	require.NoError(t, m.Run(context.Background()))

	db := openSQLite(t, dbPath)
	assert.True(t, tableExists(t, db, "users"))
	assert.True(t, tableExists(t, db, "schema_migrations"))

	version, dirty, err := m.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.up.sql",
		`CREATE TABLE events (id INTEGER PRIMARY KEY);`)

	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{SQLitePath: dbPath, Path: dir}, nil)

	require.NoError(t, m.Run(context.Background()))
	require.NoError(t, m.Run(context.Background()))

	version, dirty, err := m.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestRun_FailingMigrationMarksDirty(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.up.sql",
		`CREATE TABLE users (id INTEGER PRIMARY KEY);`)
	writeMigration(t, dir, "0002_broken.up.sql",
		`THIS IS NOT VALID SQL;`)

	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{SQLitePath: dbPath, Path: dir}, nil)

	require.Error(t, m.Run(context.Background()))

	version, dirty, err := m.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.True(t, dirty)
}

func TestRun_VersionBeforeAnyMigration(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.up.sql",
		`CREATE TABLE users (id INTEGER PRIMARY KEY);`)

	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{SQLitePath: dbPath, Path: dir}, nil)

	version, dirty, err := m.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestRun_NoMigrationFilesIsNoop(t *testing.T) {
	dir := t.TempDir()

	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{SQLitePath: dbPath, Path: dir}, nil)

	require.NoError(t, m.Run(context.Background()))

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "database should not be created without migrations")
}

func TestRun_MissingDirectoryIsNoop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{
		SQLitePath: dbPath,
		Path:       filepath.Join(t.TempDir(), "does-not-exist"),
	}, nil)

	require.NoError(t, m.Run(context.Background()))
}

func TestRun_IgnoresNonSQLFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "README.md", "notes")

	dbPath := filepath.Join(t.TempDir(), "app.db")
	m := New(Config{SQLitePath: dbPath, Path: dir}, nil)

	require.NoError(t, m.Run(context.Background()))

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_RequiresTarget(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.up.sql",
		`CREATE TABLE users (id INTEGER PRIMARY KEY);`)

	m := New(Config{Path: dir}, nil)
	assert.Error(t, m.Run(context.Background()))
}
