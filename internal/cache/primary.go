package cache

import (
	"context"
	stderr "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/recordstore/recordstore/internal/store"
	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/types"
)

// Metrics receives cache events. internal/metrics.Collector implements
// it; a nil value disables recording.
type Metrics interface {
	RecordCacheRequest(cache string, hit bool)
	RecordReload(duration time.Duration)
	RecordInvalidation(reason string)
	RecordWatcherDegraded()
	SetRecordCount(n int)
}

// nopMetrics is the default sink when none is configured.
type nopMetrics struct{}

func (nopMetrics) RecordCacheRequest(string, bool) {}
func (nopMetrics) RecordReload(time.Duration)      {}
func (nopMetrics) RecordInvalidation(string)       {}
func (nopMetrics) RecordWatcherDegraded()          {}
func (nopMetrics) SetRecordCount(int)              {}

// Primary owns the in-memory copy of the decoded collection and its
// freshness token (the store's modification signal as of the read or
// write that produced the copy).
//
// Two locks split the state: io serializes every store access together
// with the state mutation that follows it, so concurrent misses
// coalesce into one load and a write can never interleave with a
// mid-flight reload. state guards the (collection, token) pair itself,
// so FreshnessToken and cache hits never wait behind store I/O. Lock
// order is io before state, never the reverse.
//
// The collection and token are cleared and advanced together, never
// independently. Read returns the cached slice without copying; callers
// that mutate records locally and write back are exposed to lost
// updates unless they use WriteIf.
type Primary struct {
	store   store.Store
	logger  *slog.Logger
	metrics Metrics

	io sync.Mutex

	state      sync.Mutex
	collection types.Collection // nil when nothing cached
	token      time.Time
	hasToken   bool

	stats types.CacheStats
}

// NewPrimary creates the primary cache and seeds the freshness token
// from the store's current modification signal. A store that does not
// exist yet is not an error; the token simply starts unset.
func NewPrimary(ctx context.Context, s store.Store, logger *slog.Logger, m Metrics) (*Primary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = nopMetrics{}
	}

	p := &Primary{store: s, logger: logger, metrics: m}

	mt, err := s.ModTime(ctx)
	switch {
	case err == nil:
		p.token = mt
		p.hasToken = true
	case stderr.Is(err, errors.ErrStoreNotExist):
		// Nothing persisted yet; first read or write will seed the token.
	default:
		return nil, err
	}
	return p, nil
}

// Read returns the cached collection, loading it from the store first
// if nothing is cached. Decode and store failures propagate unchanged
// and leave the cache empty, so the next call retries from scratch.
func (p *Primary) Read(ctx context.Context) (types.Collection, error) {
	c, _, err := p.ReadWithToken(ctx)
	return c, err
}

// ReadWithToken is Read plus the freshness token the returned collection
// corresponds to. Dependent caches use it so their observed token is
// exactly the token of the collection they computed from.
func (p *Primary) ReadWithToken(ctx context.Context) (types.Collection, time.Time, error) {
	// Fast path: serve a hit without touching the io lock.
	p.state.Lock()
	if p.collection != nil {
		c, tok := p.collection, p.token
		p.stats.Hits++
		p.state.Unlock()
		p.metrics.RecordCacheRequest("primary", true)
		return c, tok, nil
	}
	p.state.Unlock()

	p.io.Lock()
	defer p.io.Unlock()

	// A concurrent miss may have filled the cache while this caller
	// waited on the io lock.
	p.state.Lock()
	if p.collection != nil {
		c, tok := p.collection, p.token
		p.stats.Hits++
		p.state.Unlock()
		p.metrics.RecordCacheRequest("primary", true)
		return c, tok, nil
	}
	p.stats.Misses++
	p.state.Unlock()
	p.metrics.RecordCacheRequest("primary", false)

	start := time.Now()
	data, err := p.store.ReadAll(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	collection, err := types.DecodeCollection(data)
	if err != nil {
		return nil, time.Time{}, errors.Wrap(errors.ErrCodeDecodeFailed,
			"decoding persisted collection", err).
			WithComponent("primarycache").WithOperation("read")
	}

	mt, err := p.store.ModTime(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	p.state.Lock()
	p.collection = collection
	p.token = mt
	p.hasToken = true
	p.stats.Reloads++
	p.state.Unlock()

	p.metrics.RecordReload(time.Since(start))
	p.metrics.SetRecordCount(len(collection))
	p.logger.Debug("collection reloaded",
		"records", len(collection),
		"token", mt,
		"duration", time.Since(start))

	return collection, mt, nil
}

// Write serializes the collection and replaces the store's contents in
// full. On success the cached copy is cleared rather than updated in
// place: the in-memory value is not trusted to equal what was durably
// written, and holders of stale references must not see their local
// mutations surface. The next Read pays the reload. A failed write
// leaves cache state untouched.
func (p *Primary) Write(ctx context.Context, c types.Collection) error {
	p.io.Lock()
	defer p.io.Unlock()
	return p.writeLocked(ctx, c)
}

// WriteIf is Write guarded by a compare-and-swap on the freshness
// token: it fails with ErrWriteConflict when the store's modification
// signal no longer equals observed, protecting read-modify-write
// sequences from lost updates. Callers obtain observed from
// ReadWithToken.
func (p *Primary) WriteIf(ctx context.Context, c types.Collection, observed time.Time) error {
	p.io.Lock()
	defer p.io.Unlock()

	mt, err := p.store.ModTime(ctx)
	if err != nil && !stderr.Is(err, errors.ErrStoreNotExist) {
		return err
	}
	// A store that vanished since the observed read also counts as a
	// conflicting modification.
	if err != nil || !mt.Equal(observed) {
		return errors.New(errors.ErrCodeWriteConflict, "store changed since observed token").
			WithComponent("primarycache").WithOperation("write")
	}
	return p.writeLocked(ctx, c)
}

// writeLocked performs the serialize-write-invalidate step. Callers hold io.
func (p *Primary) writeLocked(ctx context.Context, c types.Collection) error {
	data, err := types.EncodeCollection(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeEncodeFailed, "encoding collection", err).
			WithComponent("primarycache").WithOperation("write")
	}

	if err := p.store.WriteAll(ctx, data); err != nil {
		return err
	}

	mt, mtErr := p.store.ModTime(ctx)

	p.state.Lock()
	p.collection = nil
	if mtErr == nil {
		p.token = mt
		p.hasToken = true
	} else {
		// The write landed but its signal is unreadable; drop the token
		// so dependent caches recompute and the next read re-seeds it.
		p.token = time.Time{}
		p.hasToken = false
	}
	p.state.Unlock()

	if mtErr != nil {
		p.logger.Warn("post-write modification signal unavailable, token cleared", "error", mtErr)
	}
	p.metrics.SetRecordCount(len(c))
	return nil
}

// FreshnessToken returns the current token without touching the store.
// The second return is false while no token has been observed.
func (p *Primary) FreshnessToken() (time.Time, bool) {
	p.state.Lock()
	defer p.state.Unlock()
	return p.token, p.hasToken
}

// Invalidate handles an external-change notification: it re-reads the
// store's modification signal and, if it moved, clears the cached
// collection and advances the token in one step. A signal equal to the
// recorded token is a duplicate notification and a no-op. If the signal
// cannot be read (store temporarily inaccessible, e.g. mid-delete) the
// cached collection is cleared unconditionally and the token kept, so
// the next read is forced to reload rather than serve stale data.
//
// No reload happens here; invalidation is lazy and the next Read pays
// the cost.
func (p *Primary) Invalidate(ctx context.Context) {
	p.io.Lock()
	defer p.io.Unlock()

	mt, err := p.store.ModTime(ctx)
	if err != nil {
		p.state.Lock()
		cleared := p.collection != nil
		p.collection = nil
		p.stats.Invalidations++
		p.state.Unlock()

		p.logger.Warn("modification signal unreadable on change notification, assuming invalidated",
			"error", err, "cleared", cleared)
		p.metrics.RecordInvalidation("signal_unreadable")
		p.metrics.RecordWatcherDegraded()
		return
	}

	p.state.Lock()
	if p.hasToken && mt.Equal(p.token) {
		p.state.Unlock()
		// Duplicate or no-op notification for a signal already seen.
		return
	}
	p.collection = nil
	p.token = mt
	p.hasToken = true
	p.stats.Invalidations++
	p.state.Unlock()

	p.logger.Debug("collection invalidated by external change", "token", mt)
	p.metrics.RecordInvalidation("external_change")
}

// Stats returns a snapshot of cache counters.
func (p *Primary) Stats() types.CacheStats {
	p.state.Lock()
	defer p.state.Unlock()

	s := p.stats
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
