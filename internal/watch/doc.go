// Package watch emits change notifications when the persistent store is
// modified by another process. The file backend uses fsnotify on the
// file's parent directory with a short debounce window; the poll backend
// compares the store's modification signal on a fixed interval. Neither
// guarantees exactly-one notification per logical change or delivery
// before the next read; the cache layer is built for that.
package watch
