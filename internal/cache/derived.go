package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/types"
)

// DefaultAggregateField is the numeric record field the aggregate
// averages when none is configured.
const DefaultAggregateField = "price"

// Derived caches the aggregate (count and mean of a numeric field)
// computed over the collection. It never watches the store itself: the
// aggregate is expensive to recompute (full scan) but cheap to
// invalidate-check, so it piggybacks on the primary cache's freshness
// token and recomputes only when the token has moved since the cached
// aggregate was computed.
//
// The primary cache never pushes into this state; it is mutated only by
// Get.
type Derived struct {
	primary *Primary
	field   string
	logger  *slog.Logger
	metrics Metrics

	mu        sync.Mutex
	aggregate types.Aggregate
	hasAgg    bool
	observed  time.Time
}

// NewDerived creates the derived cache over the primary. field selects
// the numeric record field to average; empty means DefaultAggregateField.
func NewDerived(primary *Primary, field string, logger *slog.Logger, m Metrics) *Derived {
	if field == "" {
		field = DefaultAggregateField
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Derived{primary: primary, field: field, logger: logger, metrics: m}
}

// Get returns the aggregate, recomputing it only when the primary
// cache's freshness token differs from the one the cached aggregate was
// computed under. An unchanged token returns the stored value with no
// store or decode work. An empty collection fails with
// ErrEmptyAggregate: the mean is undefined and the error is the
// documented contract, not a NaN sentinel.
func (d *Derived) Get(ctx context.Context) (types.Aggregate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tok, ok := d.primary.FreshnessToken(); ok && d.hasAgg && tok.Equal(d.observed) {
		d.metrics.RecordCacheRequest("derived", true)
		return d.aggregate, nil
	}
	d.metrics.RecordCacheRequest("derived", false)

	collection, tok, err := d.primary.ReadWithToken(ctx)
	if err != nil {
		return types.Aggregate{}, err
	}

	agg, err := computeAggregate(collection, d.field)
	if err != nil {
		// Not cached: an empty collection is re-evaluated on the next
		// call, which is as cheap as the token check.
		return types.Aggregate{}, err
	}

	d.aggregate = agg
	d.observed = tok
	d.hasAgg = true

	d.logger.Debug("aggregate recomputed",
		"total", agg.Total, "average", agg.AveragePrice, "token", tok)
	return agg, nil
}

// computeAggregate is the pure full-scan over the collection: record
// count and arithmetic mean of the configured field. Records missing
// the field contribute zero to the sum but still count, preserving
// "mean over all records" when the caller invariant (field present
// everywhere) holds.
func computeAggregate(c types.Collection, field string) (types.Aggregate, error) {
	if len(c) == 0 {
		return types.Aggregate{}, errors.New(errors.ErrCodeEmptyAggregate,
			"aggregate undefined over empty collection").
			WithComponent("derivedcache").WithOperation("get")
	}

	var sum float64
	for _, rec := range c {
		if v, ok := rec.Number(field); ok {
			sum += v
		}
	}
	return types.Aggregate{
		Total:        len(c),
		AveragePrice: sum / float64(len(c)),
	}, nil
}
