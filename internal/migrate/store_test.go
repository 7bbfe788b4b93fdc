package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_URLRouting(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		url     string
		dialect Dialect
	}{
		{"sqlite scheme", "sqlite://" + filepath.Join(dir, "a.db"), DialectSQLite},
		{"bare path", filepath.Join(dir, "b.db"), DialectSQLite},
		{"postgres scheme", "postgres://u:p@localhost/radio?sslmode=disable", DialectPostgres},
		{"postgresql scheme", "postgresql://u:p@localhost/radio", DialectPostgres},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.url)
			require.NoError(t, err)
			defer store.Close()
			assert.Equal(t, tt.dialect, store.dialect)
		})
	}
}

func TestOpen_SQLiteRoundTrip(t *testing.T) {
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "radio.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))

	state, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUninitialized, state)
}

func TestRebind(t *testing.T) {
	query := "INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)"

	sqliteStore := &Store{dialect: DialectSQLite}
	assert.Equal(t, query, sqliteStore.rebind(query))

	pgStore := &Store{dialect: DialectPostgres}
	assert.Equal(t,
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
		pgStore.rebind(query))
}

func TestUpgrade_PostgresDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	steps := []Step{{
		ID:          1,
		Description: "create widgets",
		Statements:  []string{"CREATE TABLE widgets (id BIGINT PRIMARY KEY)"},
	}}
	store := NewStore(db, DialectPostgres, steps)

	// No tracking table and no schema tables: fresh store, no adoption.
	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}))
	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}))
	mock.ExpectExec("CREATE TABLE schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE widgets").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations \(version, description, applied_at\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(int64(1), "create widgets", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := store.Upgrade(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, int64(1), applied[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpgrade_PostgresAdoption(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	steps := []Step{{
		ID:          1,
		Description: "create widgets",
		Statements:  []string{"CREATE TABLE widgets (id BIGINT PRIMARY KEY)"},
	}}
	store := NewStore(db, DialectPostgres, steps)

	// Tracking table absent but a schema table exists: stamp, never replay.
	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("widgets"))
	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("widgets"))
	mock.ExpectExec("CREATE TABLE schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schema_migrations \(version, description, applied_at\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(int64(1), "create widgets", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := store.Upgrade(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.True(t, applied[0].Stamped)

	assert.NoError(t, mock.ExpectationsWereMet())
}
