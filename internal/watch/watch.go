package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/recordstore/recordstore/internal/store"
)

// DefaultDebounce collapses bursts of filesystem events (editors and
// atomic rename-replace writes produce several per logical change).
const DefaultDebounce = 100 * time.Millisecond

// DefaultPollInterval is how often the poll watcher checks the store's
// modification signal.
const DefaultPollInterval = 10 * time.Second

// Event signals that the store's contents may have changed. Delivery is
// best-effort: duplicates, delays, and drops under load are all
// possible, and the cache layer guards against each.
type Event struct {
	At time.Time
}

// Watcher emits change notifications for a store modified out of band.
type Watcher interface {
	// Events returns the notification channel. It is closed by Close.
	Events() <-chan Event

	// Close stops watching and releases resources.
	Close() error
}

// FileWatcher watches the collection file via fsnotify. It watches the
// parent directory rather than the file so rename-replace writes keep
// being observed after the original inode is gone.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	events   chan Event
	done     chan struct{}
	debounce time.Duration
	base     string
	logger   *slog.Logger
	degraded func(error)

	mu     sync.Mutex
	closed bool
}

// NewFileWatcher starts watching the file at path. The degraded callback
// is invoked for non-fatal notification failures; nil means log-only.
func NewFileWatcher(path string, debounce time.Duration, logger *slog.Logger, degraded func(error)) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &FileWatcher{
		watcher:  fsw,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		debounce: debounce,
		base:     filepath.Base(path),
		logger:   logger,
		degraded: degraded,
	}
	go w.loop()
	return w, nil
}

// Events returns the notification channel.
func (w *FileWatcher) Events() <-chan Event {
	return w.events
}

func (w *FileWatcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.emit)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error, continuing degraded", "error", err)
			if w.degraded != nil {
				w.degraded(err)
			}
			// Err on the side of invalidation rather than staleness.
			w.emit()

		case <-w.done:
			return
		}
	}
}

func (w *FileWatcher) emit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- Event{At: time.Now()}:
	default:
		// Channel full: a notification is already pending and one
		// invalidation covers any number of changes.
	}
}

// Close stops the watcher and closes the event channel.
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	close(w.events)
	return err
}

// PollWatcher emits a notification when the store's modification signal
// moves between polls. It backs stores without native change
// notification, such as S3.
type PollWatcher struct {
	store    store.Store
	interval time.Duration
	events   chan Event
	done     chan struct{}
	logger   *slog.Logger
	degraded func(error)

	mu       sync.Mutex
	closed   bool
	lastSeen time.Time
	hasSeen  bool
}

// NewPollWatcher starts polling the store's modification signal.
func NewPollWatcher(s store.Store, interval time.Duration, logger *slog.Logger, degraded func(error)) *PollWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	w := &PollWatcher{
		store:    s,
		interval: interval,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		logger:   logger,
		degraded: degraded,
	}
	go w.loop()
	return w
}

// Events returns the notification channel.
func (w *PollWatcher) Events() <-chan Event {
	return w.events
}

func (w *PollWatcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-w.done:
			return
		}
	}
}

func (w *PollWatcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	mt, err := w.store.ModTime(ctx)
	if err != nil {
		w.logger.Warn("poll watcher stat failed, continuing degraded", "error", err)
		if w.degraded != nil {
			w.degraded(err)
		}
		// The cache treats a notification with an unreadable signal as
		// "assume invalidated"; forward rather than stay silent.
		w.emit()
		return
	}

	w.mu.Lock()
	changed := !w.hasSeen || !mt.Equal(w.lastSeen)
	w.lastSeen = mt
	first := !w.hasSeen
	w.hasSeen = true
	w.mu.Unlock()

	// The first observation establishes the baseline; only later
	// movement is a change.
	if changed && !first {
		w.emit()
	}
}

func (w *PollWatcher) emit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.events <- Event{At: time.Now()}:
	default:
	}
}

// Close stops polling and closes the event channel.
func (w *PollWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	close(w.events)
	return nil
}
