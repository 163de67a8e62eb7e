package cache

import (
	"context"
	"sync"
	"time"

	"github.com/recordstore/recordstore/pkg/errors"
)

// fakeStore is an in-memory store for cache tests. Every mutation of
// the content advances the modification signal unless the test pins it.
type fakeStore struct {
	mu      sync.Mutex
	data    []byte
	exists  bool
	modTime time.Time

	readErr  error
	writeErr error
	statErr  error

	reads  int
	writes int
	stats  int
}

func newFakeStore(data []byte) *fakeStore {
	return &fakeStore{
		data:    data,
		exists:  data != nil,
		modTime: time.Unix(1000, 0),
	}
}

func (s *fakeStore) ReadAll(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	if !s.exists {
		return nil, errors.New(errors.ErrCodeStoreNotFound, "no object")
	}
	return s.data, nil
}

func (s *fakeStore) WriteAll(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data = data
	s.exists = true
	s.modTime = s.modTime.Add(time.Second)
	return nil
}

func (s *fakeStore) ModTime(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats++
	if s.statErr != nil {
		return time.Time{}, s.statErr
	}
	if !s.exists {
		return time.Time{}, errors.New(errors.ErrCodeStoreNotFound, "no object")
	}
	return s.modTime, nil
}

// externalChange simulates an out-of-band writer replacing the content.
func (s *fakeStore) externalChange(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.exists = true
	s.modTime = s.modTime.Add(time.Second)
}

func (s *fakeStore) counts() (reads, writes, stats int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes, s.stats
}
