package migrate

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) (database.Driver, *sql.DB) {
	t.Helper()
	db := openSQLite(t, filepath.Join(t.TempDir(), "driver.db"))
	d, err := newSQLiteDriver(db, "")
	require.NoError(t, err)
	return d, db
}

func TestSQLiteDriver_VersionRoundTrip(t *testing.T) {
	d, _ := newTestDriver(t)

	version, dirty, err := d.Version()
	require.NoError(t, err)
	assert.Equal(t, database.NilVersion, version)
	assert.False(t, dirty)

	require.NoError(t, d.SetVersion(3, true))
	version, dirty, err = d.Version()
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.True(t, dirty)

	require.NoError(t, d.SetVersion(3, false))
	version, dirty, err = d.Version()
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.False(t, dirty)
}

func TestSQLiteDriver_SetNilVersionClearsTable(t *testing.T) {
	d, _ := newTestDriver(t)

	require.NoError(t, d.SetVersion(1, false))
	require.NoError(t, d.SetVersion(database.NilVersion, false))

	version, dirty, err := d.Version()
	require.NoError(t, err)
	assert.Equal(t, database.NilVersion, version)
	assert.False(t, dirty)
}

func TestSQLiteDriver_Lock(t *testing.T) {
	d, _ := newTestDriver(t)

	require.NoError(t, d.Lock())
	assert.ErrorIs(t, d.Lock(), database.ErrLocked)
	require.NoError(t, d.Unlock())
	assert.ErrorIs(t, d.Unlock(), database.ErrNotLocked)
}

func TestSQLiteDriver_Run(t *testing.T) {
	d, db := newTestDriver(t)

	err := d.Run(strings.NewReader(`CREATE TABLE items (id INTEGER PRIMARY KEY);`))
	require.NoError(t, err)
	assert.True(t, tableExists(t, db, "items"))

	err = d.Run(strings.NewReader(`NOT SQL`))
	require.Error(t, err)
	var dbErr *database.Error
	assert.ErrorAs(t, err, &dbErr)
}

func TestSQLiteDriver_Drop(t *testing.T) {
	d, db := newTestDriver(t)

	require.NoError(t, d.Run(strings.NewReader(`CREATE TABLE items (id INTEGER PRIMARY KEY);`)))
	require.NoError(t, d.Drop())

	assert.False(t, tableExists(t, db, "items"))
}

func TestSQLiteDriver_OpenRejected(t *testing.T) {
	d, _ := newTestDriver(t)

	_, err := d.Open("sqlite://other.db")
	assert.Error(t, err)
}
