// Package metrics exposes Prometheus metrics for the cache layer and
// the HTTP surface: cache hit/miss counters, reload durations,
// invalidation and watcher-degradation counters, and the collection
// size gauge.
package metrics
