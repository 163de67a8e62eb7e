package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordstore/recordstore/pkg/errors"
)

func TestNewFileStore(t *testing.T) {
	s, err := NewFileStore("/tmp/records.json")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/records.json", s.Path())

	_, err = NewFileStore("")
	assert.ErrorIs(t, err, errors.New(errors.ErrCodeInvalidConfig, ""))
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte(`[{"id": 1}]`)
	require.NoError(t, s.WriteAll(ctx, content))

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	mt, err := s.ModTime(ctx)
	require.NoError(t, err)
	assert.False(t, mt.IsZero())
}

func TestFileStoreMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.ReadAll(ctx)
	assert.ErrorIs(t, err, errors.ErrStoreNotExist)

	_, err = s.ModTime(ctx)
	assert.ErrorIs(t, err, errors.ErrStoreNotExist)
}

func TestFileStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "records.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteAll(context.Background(), []byte(`[]`)))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStoreWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.WriteAll(context.Background(), []byte(`[{"id": 1}]`)))
	require.NoError(t, s.WriteAll(context.Background(), []byte(`[{"id": 2}]`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "records.json", entries[0].Name())
}

func TestFileStoreModTimeAdvancesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.WriteAll(ctx, []byte(`[]`)))
	first, err := s.ModTime(ctx)
	require.NoError(t, err)

	// Pin an old mtime so the rewrite observably moves it even on
	// filesystems with coarse timestamps.
	old := first.Add(-10 * time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, s.WriteAll(ctx, []byte(`[{"id": 1}]`)))
	second, err := s.ModTime(ctx)
	require.NoError(t, err)
	assert.True(t, second.After(old))
}
