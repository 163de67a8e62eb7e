// Command recordstored serves a JSON record collection over HTTP,
// backed by a file or S3 store with a coherent in-memory cache.
package main

import (
	"context"
	stderr "errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/recordstore/recordstore/internal/api"
	"github.com/recordstore/recordstore/internal/cache"
	"github.com/recordstore/recordstore/internal/config"
	"github.com/recordstore/recordstore/internal/metrics"
	"github.com/recordstore/recordstore/internal/store"
	"github.com/recordstore/recordstore/internal/watch"
	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/health"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading config from environment: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Configuration, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := metrics.NewCollector(cfg.Metrics)
	if err != nil {
		return fmt.Errorf("creating metrics collector: %w", err)
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	primary, err := cache.NewPrimary(ctx, st, logger, collector)
	if err != nil {
		return fmt.Errorf("creating primary cache: %w", err)
	}
	derived := cache.NewDerived(primary, cfg.Aggregate.Field, logger, collector)

	tracker := health.NewTracker()
	tracker.RegisterCheck("store", func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_, err := st.ModTime(checkCtx)
		if err != nil && !isNotExist(err) {
			return err
		}
		return nil
	})

	watcher := startWatcher(cfg, st, logger, collector, tracker)
	if watcher != nil {
		defer watcher.Close()
		go func() {
			for range watcher.Events() {
				primary.Invalidate(context.Background())
			}
		}()
	}

	server := api.NewServer(api.ServerConfig{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		EnableCORS:   cfg.Server.EnableCORS,
	}, primary, derived, tracker, metricsHandler(collector, cfg.Metrics), collector, logger)

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	logger.Info("recordstored started",
		"address", cfg.Server.Address,
		"backend", cfg.Store.Backend,
		"watcher", cfg.Watcher.Enabled)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// newStore builds the persistence backend selected by the configuration.
func newStore(ctx context.Context, cfg *config.Configuration, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "file":
		return store.NewFileStore(cfg.Store.File.Path)
	case "s3":
		return store.NewS3Store(ctx, cfg.Store.S3, logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// startWatcher wires the change watcher for the configured backend. A
// watcher that cannot be set up is a degraded service, not a fatal
// error: the cache still serves, it just cannot observe external
// modification.
func startWatcher(cfg *config.Configuration, st store.Store, logger *slog.Logger,
	collector *metrics.Collector, tracker *health.Tracker) watch.Watcher {

	if !cfg.Watcher.Enabled {
		return nil
	}

	degraded := func(err error) {
		collector.RecordWatcherDegraded()
		tracker.SetState("watcher", health.StateDegraded, err)
	}

	switch cfg.Store.Backend {
	case "file":
		fs, ok := st.(*store.FileStore)
		if !ok {
			return nil
		}
		w, err := watch.NewFileWatcher(fs.Path(), cfg.Watcher.Debounce, logger, degraded)
		if err != nil {
			logger.Warn("file watcher unavailable, continuing without change notifications", "error", err)
			collector.RecordWatcherDegraded()
			tracker.SetState("watcher", health.StateDegraded, err)
			return nil
		}
		tracker.SetState("watcher", health.StateHealthy, nil)
		return w

	case "s3":
		w := watch.NewPollWatcher(st, cfg.Watcher.PollInterval, logger, degraded)
		tracker.SetState("watcher", health.StateHealthy, nil)
		return w
	}
	return nil
}

// metricsHandler returns the /metrics handler, or nil when disabled.
func metricsHandler(collector *metrics.Collector, cfg metrics.Config) http.Handler {
	if !cfg.Enabled {
		return nil
	}
	return collector.Handler()
}

// isNotExist reports whether err means the store has no object yet.
func isNotExist(err error) bool {
	return stderr.Is(err, errors.ErrStoreNotExist)
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
