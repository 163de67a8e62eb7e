package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Namespace: "recordstore",
	}
}

// Collector owns the Prometheus registry and the service's metric set.
// With Enabled false every method is a no-op and Handler serves an
// empty registry.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	cacheRequests   *prometheus.CounterVec
	reloadDuration  prometheus.Histogram
	invalidations   *prometheus.CounterVec
	watcherDegraded prometheus.Counter
	recordCount     prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCollector creates a metrics collector with its own registry.
func NewCollector(config Config) (*Collector, error) {
	registry := prometheus.NewRegistry()
	c := &Collector{config: config, registry: registry}

	if !config.Enabled {
		return c, nil
	}

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "cache_requests_total",
			Help:      "Total cache requests by cache and result",
		},
		[]string{"cache", "result"},
	)

	c.reloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "reload_duration_seconds",
			Help:      "Duration of collection reloads from the store",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	c.invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "invalidations_total",
			Help:      "Cache invalidations by reason",
		},
		[]string{"reason"},
	)

	c.watcherDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "watcher_degraded_total",
			Help:      "Change-watcher failures handled in degraded mode",
		},
	)

	c.recordCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "records",
			Help:      "Records in the collection as of the last load or write",
		},
	)

	c.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by path",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"path"},
	)

	collectors := []prometheus.Collector{
		c.cacheRequests,
		c.reloadDuration,
		c.invalidations,
		c.watcherDegraded,
		c.recordCount,
		c.httpRequests,
		c.httpDuration,
	}
	for _, col := range collectors {
		if err := registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordCacheRequest records a hit or miss for the named cache.
func (c *Collector) RecordCacheRequest(cache string, hit bool) {
	if !c.config.Enabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheRequests.With(prometheus.Labels{"cache": cache, "result": result}).Inc()
}

// RecordReload records the duration of a collection reload.
func (c *Collector) RecordReload(duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.reloadDuration.Observe(duration.Seconds())
}

// RecordInvalidation records a cache invalidation with its reason.
func (c *Collector) RecordInvalidation(reason string) {
	if !c.config.Enabled {
		return
	}
	c.invalidations.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordWatcherDegraded records a watcher failure handled in degraded mode.
func (c *Collector) RecordWatcherDegraded() {
	if !c.config.Enabled {
		return
	}
	c.watcherDegraded.Inc()
}

// SetRecordCount updates the collection size gauge.
func (c *Collector) SetRecordCount(n int) {
	if !c.config.Enabled {
		return
	}
	c.recordCount.Set(float64(n))
}

// RecordHTTPRequest records a served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.httpRequests.With(prometheus.Labels{
		"method": method,
		"path":   path,
		"status": httpStatusClass(status),
	}).Inc()
	c.httpDuration.With(prometheus.Labels{"path": path}).Observe(duration.Seconds())
}

// Handler returns the /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// httpStatusClass buckets statuses to keep label cardinality down.
func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
