package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/recordstore/recordstore/pkg/errors"
)

// FileStore persists the collection as a single file on local disk.
// Writes go to a temp file in the same directory and are renamed into
// place, so readers never observe a partial write and the directory
// watcher sees exactly one change per write.
type FileStore struct {
	path string
}

// NewFileStore creates a file store for the given path. The file itself
// is not created; a store that does not exist yet is a valid state.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "file store path cannot be empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// ReadAll returns the file's full contents.
func (s *FileStore) ReadAll(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeStoreNotFound,
				fmt.Sprintf("collection file %s does not exist", s.path), err).
				WithComponent("filestore").WithOperation("read")
		}
		return nil, errors.Wrap(errors.ErrCodeStoreRead,
			fmt.Sprintf("reading collection file %s", s.path), err).
			WithComponent("filestore").WithOperation("read")
	}
	return data, nil
}

// WriteAll atomically replaces the file's contents.
func (s *FileStore) WriteAll(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite,
			fmt.Sprintf("creating directory for %s", s.path), err).
			WithComponent("filestore").WithOperation("write")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite,
			fmt.Sprintf("writing temp file for %s", s.path), err).
			WithComponent("filestore").WithOperation("write")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeStoreWrite,
			fmt.Sprintf("replacing collection file %s", s.path), err).
			WithComponent("filestore").WithOperation("write")
	}
	return nil
}

// ModTime returns the file's last-modification time.
func (s *FileStore) ModTime(_ context.Context) (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, errors.Wrap(errors.ErrCodeStoreNotFound,
				fmt.Sprintf("collection file %s does not exist", s.path), err).
				WithComponent("filestore").WithOperation("stat")
		}
		return time.Time{}, errors.Wrap(errors.ErrCodeStoreStat,
			fmt.Sprintf("stat collection file %s", s.path), err).
			WithComponent("filestore").WithOperation("stat")
	}
	return info.ModTime(), nil
}
