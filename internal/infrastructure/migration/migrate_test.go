package migration

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/storefront/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSQLiteMigrator(t *testing.T, path string) *Migrator {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	m, err := New(db, "sqlite", migrations.FS, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMigrator_UpAndDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")
	m := newSQLiteMigrator(t, path)

	status, err := m.Status()
	require.NoError(t, err)
	assert.Zero(t, status.Version)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, []string{"000001_init_storefront"}, status.Available)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up(), "a second run has nothing to apply")

	status, err = m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(1), status.Version)
	assert.False(t, status.Dirty)
	assert.Zero(t, status.Pending)

	t.Run("schema covers every persisted column", func(t *testing.T) {
		db, err := persistence.NewDatabase(&config.DatabaseConfig{
			Driver:       "sqlite",
			Path:         path,
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		})
		require.NoError(t, err)
		defer db.Close()

		for _, model := range models.All() {
			stmt := &gorm.Statement{DB: db.DB}
			require.NoError(t, stmt.Parse(model))
			require.True(t, db.DB.Migrator().HasTable(model), "table %s", stmt.Schema.Table)
			for _, field := range stmt.Schema.Fields {
				if field.DBName == "" {
					continue
				}
				assert.True(t, db.DB.Migrator().HasColumn(model, field.DBName),
					"column %s.%s", stmt.Schema.Table, field.DBName)
			}
		}
	})

	require.NoError(t, m.Down())
	assert.Equal(t, []string{"schema_migrations"}, sqliteTables(t, path))
	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}

// sqliteTables lists the tables of the database file at path
func sqliteTables(t *testing.T, path string) []string {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestMigrator_Steps(t *testing.T) {
	m := newSQLiteMigrator(t, filepath.Join(t.TempDir(), "steps.db"))

	require.NoError(t, m.Steps(1))
	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, m.Steps(-1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(nil, "mysql", migrations.FS, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migration driver")
}

func TestMigrator_StatusRejectsUnnumberedFiles(t *testing.T) {
	files := fstest.MapFS{
		"000001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"000001_init.down.sql": {Data: []byte("DROP TABLE a;")},
	}
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	m, err := New(db, "sqlite", files, nil)
	require.NoError(t, err)
	defer m.Close()

	files["init.up.sql"] = &fstest.MapFile{Data: []byte("-- no version")}
	_, err = m.Status()
	assert.Error(t, err)
}
