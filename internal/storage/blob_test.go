package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlobStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.LoadSyncedData(ctx)
	require.NoError(t, err)
	assert.False(t, found, "fresh store should report no data")

	require.NoError(t, s.PersistDataSynced(ctx, `[]`))
	data, found, err := s.LoadSyncedData(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[]`, data)

	require.NoError(t, s.PersistDataSynced(ctx, `[{"id":"r1"}]`))
	data, _, err = s.LoadSyncedData(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"r1"}]`, data)
}

func TestFileBlobStore(t *testing.T) {
	s := NewFileBlobStore(filepath.Join(t.TempDir(), "nested", "rules.json"))
	defer s.Close()
	testBlobStore(t, s)

	// No temp file left behind.
	_, err := os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteBlobStore(t *testing.T) {
	s, err := NewSQLiteBlobStore(filepath.Join(t.TempDir(), "ruleflow.db"))
	require.NoError(t, err)
	defer s.Close()
	testBlobStore(t, s)
}

func TestSQLiteBlobStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruleflow.db")
	ctx := context.Background()

	s, err := NewSQLiteBlobStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PersistDataSynced(ctx, `["x"]`))
	require.NoError(t, s.Close())

	s, err = NewSQLiteBlobStore(path)
	require.NoError(t, err)
	defer s.Close()

	data, found, err := s.LoadSyncedData(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `["x"]`, data)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileBlobStore{}, s)
	s.Close()

	s, err = Open(DriverSQLite, dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBlobStore{}, s)
	s.Close()

	_, err = Open("postgres", dir)
	assert.Error(t, err)
}
