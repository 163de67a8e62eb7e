package store

import (
	"context"
	"time"
)

// Store is the persistent holder of one serialized collection: a
// readable/writable blob with a last-modification signal. The cache
// layer consumes it and never retries its failures; transient-error
// policy belongs to the implementation.
//
// Contract:
//   - ReadAll returns the full blob, or an error carrying
//     errors.ErrCodeStoreNotFound when the store does not exist yet.
//   - WriteAll replaces the blob in full; partial writes must never be
//     observable by a concurrent ReadAll.
//   - ModTime returns the store's last-modification signal. Two writes
//     of identical content may still advance the signal.
type Store interface {
	ReadAll(ctx context.Context) ([]byte, error)
	WriteAll(ctx context.Context, data []byte) error
	ModTime(ctx context.Context) (time.Time, error)
}
