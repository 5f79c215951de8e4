package store_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/jsonsqlite/store"
)

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()

	t.Run("Columns of missing table", func(t *testing.T) {
		cols, err := s.Columns("nope")
		require.NoError(t, err)
		assert.Empty(t, cols)
	})

	t.Run("CreateTable", func(t *testing.T) {
		require.NoError(t, s.CreateTable("root", nil))
		require.NoError(t, s.CreateTable("root__addr", []store.Column{{Name: "root_id", Type: "INTEGER"}}))

		cols, err := s.Columns("root__addr")
		require.NoError(t, err)
		assert.Equal(t, []store.Column{
			{Name: store.RowIDColumn, Type: "INTEGER"},
			{Name: "root_id", Type: "INTEGER"},
		}, cols)
	})

	t.Run("CreateTable is idempotent", func(t *testing.T) {
		require.NoError(t, s.CreateTable("root", nil))
		require.NoError(t, s.CreateTable("ROOT", nil))
	})

	t.Run("AddColumn", func(t *testing.T) {
		require.NoError(t, s.AddColumn("root", store.Column{Name: "id", Type: "INTEGER"}))
		require.NoError(t, s.AddColumn("root", store.Column{Name: "name", Type: "TEXT"}))
		require.NoError(t, s.AddColumn("root__addr", store.Column{Name: "city", Type: "TEXT"}))

		cols, err := s.Columns("root")
		require.NoError(t, err)
		assert.Equal(t, []store.Column{
			{Name: store.RowIDColumn, Type: "INTEGER"},
			{Name: "id", Type: "INTEGER"},
			{Name: "name", Type: "TEXT"},
		}, cols)
	})

	t.Run("AddColumn duplicate", func(t *testing.T) {
		err := s.AddColumn("root", store.Column{Name: "id", Type: "TEXT"})
		assert.True(t, errors.Is(err, store.ErrColumnExists), "got %v", err)

		err = s.AddColumn("root", store.Column{Name: "NAME", Type: "TEXT"})
		assert.True(t, errors.Is(err, store.ErrColumnExists), "got %v", err)
	})

	t.Run("AddColumn missing table", func(t *testing.T) {
		err := s.AddColumn("missing", store.Column{Name: "x", Type: "TEXT"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, store.ErrColumnExists))
	})

	t.Run("Insert returns increasing ids", func(t *testing.T) {
		id1, err := s.Insert("root", []store.Field{{Column: "id", Value: int64(1)}, {Column: "name", Value: "a"}})
		require.NoError(t, err)
		id2, err := s.Insert("root", []store.Field{{Column: "id", Value: int64(2)}})
		require.NoError(t, err)
		assert.Greater(t, id2, id1)
	})

	t.Run("Insert default values", func(t *testing.T) {
		id, err := s.Insert("root", nil)
		require.NoError(t, err)
		assert.Positive(t, id)
	})

	t.Run("Insert unknown column", func(t *testing.T) {
		_, err := s.Insert("root", []store.Field{{Column: "nope", Value: 1}})
		assert.Error(t, err)
	})

	t.Run("Insert unknown table", func(t *testing.T) {
		_, err := s.Insert("missing", []store.Field{{Column: "x", Value: 1}})
		assert.Error(t, err)
	})

	t.Run("Commit", func(t *testing.T) {
		require.NoError(t, s.Commit())
		_, err := s.Insert("root__addr", []store.Field{{Column: "city", Value: "X"}, {Column: "root_id", Value: int64(1)}})
		require.NoError(t, err)
		require.NoError(t, s.Commit())
	})
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	runStoreTests(t, s)

	assert.Equal(t, []string{"root", "root__addr"}, s.Tables())
	assert.Equal(t, 2, s.Commits())

	rows := s.Rows("root")
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0][store.RowIDColumn])
	assert.Equal(t, "a", rows[0]["name"])
	assert.Nil(t, s.Rows("missing"))
}

func TestSqliteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSqliteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	runStoreTests(t, s)
}

func TestSqliteStoreCommitAndClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "out.db")
	s, err := store.NewSqliteStore(dbPath)
	require.NoError(t, err)

	require.NoError(t, s.CreateTable("root", nil))
	require.NoError(t, s.AddColumn("root", store.Column{Name: "select", Type: "TEXT"}))
	_, err = s.Insert("root", []store.Field{{Column: "select", Value: "kept"}})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	// Not committed: discarded by Close.
	_, err = s.Insert("root", []store.Field{{Column: "select", Value: "lost"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var values []string
	rows, err := db.Query(`SELECT "select" FROM root ORDER BY row__id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		values = append(values, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"kept"}, values)
}

func TestSqliteStoreReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "out.db")
	s, err := store.NewSqliteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.CreateTable("root", nil))
	require.NoError(t, s.AddColumn("root", store.Column{Name: "id", Type: "INTEGER"}))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	s, err = store.NewSqliteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	cols, err := s.Columns("root")
	require.NoError(t, err)
	assert.Equal(t, []store.Column{
		{Name: store.RowIDColumn, Type: "INTEGER"},
		{Name: "id", Type: "INTEGER"},
	}, cols)
	assert.ErrorIs(t, s.AddColumn("root", store.Column{Name: "id", Type: "INTEGER"}), store.ErrColumnExists)
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
	}{
		{"sqlite"},
		{"memory"},
		{""},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			s, err := store.New(tc.backend, filepath.Join(dir, tc.backend+".db"))
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := store.New("redis", dir)
		assert.Error(t, err)
	})
}
