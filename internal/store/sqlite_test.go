// ABOUTME: Tests for the SQLite local-file backend and backend selection
// ABOUTME: Covers file creation, persistence across reopen and Open's auto fallback

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "cleanchem.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cleanchem.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, first))
	require.NoError(t, first.Append(ctx, TableUsers, map[string]string{"id": "u1", "username": "ana"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	records, err := second.ScanAll(ctx, TableUsers)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ana", records[0].Get("username"))
	assert.Equal(t, RowLocator(2), records[0].Row)
}

func TestSQLiteStore_UnknownTable(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ScanAll(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTable)

	err = s.Append(context.Background(), "nope", map[string]string{"id": "1"})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestSQLiteStore_UpdateMissingRow(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.EnsureTable(ctx, "t", []string{"id"}))

	err = s.UpdateCell(ctx, "t", 7, "id", "x")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestSQLiteStore_Header(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.EnsureTable(ctx, TableChatReads, ChatReadsSchema.Columns))

	header, err := s.Header(ctx, TableChatReads)
	require.NoError(t, err)
	assert.Equal(t, ChatReadsSchema.Columns, header)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("auto without credentials falls back to sqlite", func(t *testing.T) {
		s, err := Open(ctx, Options{Backend: BackendAuto, Path: filepath.Join(t.TempDir(), "db.sqlite")}, nil)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStore{}, s)
	})

	t.Run("auto with credentials uses sheets", func(t *testing.T) {
		s, err := Open(ctx, Options{Sheets: SheetsOptions{CredentialsJSON: "{}"}}, nil)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SheetsStore{}, s)
	})

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, Options{Backend: BackendMemory}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("sqlite requires a path", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: BackendSQLite}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: "excel"}, nil)
		assert.Error(t, err)
	})
}
