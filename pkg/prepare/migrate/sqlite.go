package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

const defaultMigrationsTable = "schema_migrations"

// sqliteDriver adapts a database/sql connection from the pure-Go sqlite
// driver to golang-migrate's database.Driver interface.
//
// golang-migrate's bundled sqlite drivers register their own database/sql
// driver under the name "sqlite", colliding with the one registered by
// glebarez/go-sqlite. Implementing the interface directly keeps a single
// sqlite driver in the process.
type sqliteDriver struct {
	db     *sql.DB
	table  string
	locked atomic.Bool
}

// newSQLiteDriver wraps an open sqlite connection. The caller keeps
// ownership of the connection.
func newSQLiteDriver(db *sql.DB, table string) (database.Driver, error) {
	if table == "" {
		table = defaultMigrationsTable
	}

	d := &sqliteDriver{
		db:    db,
		table: table,
	}

	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqliteDriver) ensureVersionTable() error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (version uint64, dirty bool)`, d.table)
	if _, err := d.db.Exec(query); err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	return nil
}

func (d *sqliteDriver) Open(string) (database.Driver, error) {
	return nil, errors.New("sqlite driver is bound to an existing connection")
}

// Close is a no-op: the connection is owned by the caller of
// newSQLiteDriver.
func (d *sqliteDriver) Close() error {
	return nil
}

// Lock uses an in-process flag. SQLite busy timeouts handle cross-process
// contention at the database level.
func (d *sqliteDriver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *sqliteDriver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

func (d *sqliteDriver) Run(migration io.Reader) error {
	statements, err := io.ReadAll(migration)
	if err != nil {
		return err
	}

	if _, err := d.db.Exec(string(statements)); err != nil {
		return &database.Error{OrigErr: err, Query: statements}
	}
	return nil
}

func (d *sqliteDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s`, d.table)
	if _, err := tx.Exec(deleteQuery); err != nil {
		_ = tx.Rollback()
		return &database.Error{OrigErr: err, Query: []byte(deleteQuery)}
	}

	// Treat a dirty nil-version as a valid state: it marks a failed first
	// migration.
	if version >= 0 || (version == database.NilVersion && dirty) {
		insertQuery := fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES (?, ?)`, d.table)
		if _, err := tx.Exec(insertQuery, version, dirty); err != nil {
			_ = tx.Rollback()
			return &database.Error{OrigErr: err, Query: []byte(insertQuery)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (d *sqliteDriver) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)

	query := fmt.Sprintf(`SELECT version, dirty FROM %s LIMIT 1`, d.table)
	err := d.db.QueryRow(query).Scan(&version, &dirty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, &database.Error{OrigErr: err, Query: []byte(query)}
	default:
		return version, dirty, nil
	}
}

func (d *sqliteDriver) Drop() error {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name != 'sqlite_sequence'`
	rows, err := d.db.Query(query)
	if err != nil {
		return &database.Error{OrigErr: err, Query: []byte(query)}
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range tables {
		dropQuery := fmt.Sprintf(`DROP TABLE %s`, table)
		if _, err := d.db.Exec(dropQuery); err != nil {
			return &database.Error{OrigErr: err, Query: []byte(dropQuery)}
		}
	}
	return nil
}
