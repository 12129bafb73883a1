// Package watch turns fsnotify events under a set of source roots into
// debounced batches of changed and removed files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Batch is one debounced set of file changes. A path appears in at most
// one of the two lists.
type Batch struct {
	Changed []string
	Removed []string
}

// Empty reports whether the batch carries no paths.
func (b Batch) Empty() bool { return len(b.Changed) == 0 && len(b.Removed) == 0 }

// Handler consumes a batch. Errors are logged and do not stop the watcher.
type Handler func(ctx context.Context, b Batch) error

// Watcher watches directory trees recursively.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	match    func(path string) bool
	skipDir  func(name string) bool

	mu      sync.Mutex
	pending map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits after the last event
// before emitting a batch.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithMatch restricts batches to files for which fn returns true.
func WithMatch(fn func(path string) bool) Option {
	return func(w *Watcher) { w.match = fn }
}

// WithSkipDir excludes directories whose base name fn accepts. Hidden
// directories are always skipped.
func WithSkipDir(fn func(name string) bool) Option {
	return func(w *Watcher) { w.skipDir = fn }
}

// New creates a Watcher. Call Add before Run.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: 300 * time.Millisecond,
		logger:   slog.New(slog.DiscardHandler),
		match:    func(string) bool { return true },
		skipDir:  func(string) bool { return false },
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skip(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", "path", path, "err", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: add %s: %w", root, err)
	}
	return nil
}

func (w *Watcher) skip(name string) bool {
	return strings.HasPrefix(name, ".") || w.skipDir(name)
}

// WatchList returns the watched directories, sorted.
func (w *Watcher) WatchList() []string {
	list := w.fsw.WatchList()
	slices.Sort(list)
	return list
}

// Run delivers batches to h until ctx is done or the watcher is closed.
// Batches are delivered from the Run goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(ctx, h)
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		case <-timer.C:
			w.flush(ctx, h)
		}
	}
}

// handleEvent records ev and reports whether anything became pending.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !w.skip(filepath.Base(ev.Name)) {
				if err := w.Add(ev.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", ev.Name, "err", err)
				}
				w.addPendingTree(ev.Name)
			}
			return true
		}
	}
	if ev.Op == fsnotify.Chmod || !w.match(ev.Name) {
		return false
	}
	w.mu.Lock()
	w.pending[ev.Name] = true
	w.mu.Unlock()
	return true
}

// addPendingTree queues files that landed in a new directory before its
// watch was registered.
func (w *Watcher) addPendingTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skip(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.match(path) {
			w.mu.Lock()
			w.pending[path] = true
			w.mu.Unlock()
		}
		return nil
	})
}

// Drain returns and clears the pending paths, split by whether they still
// exist on disk.
func (w *Watcher) Drain() Batch {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	slices.Sort(paths)
	var b Batch
	for _, p := range paths {
		fi, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			b.Removed = append(b.Removed, p)
		case err == nil && !fi.IsDir():
			b.Changed = append(b.Changed, p)
		}
	}
	return b
}

func (w *Watcher) flush(ctx context.Context, h Handler) {
	b := w.Drain()
	if b.Empty() {
		return
	}
	start := time.Now()
	if err := h(ctx, b); err != nil {
		w.logger.Warn("watch handler failed", "changed", len(b.Changed), "removed", len(b.Removed), "err", err)
		return
	}
	w.logger.Debug("watch batch applied",
		"changed", len(b.Changed), "removed", len(b.Removed), "elapsed", time.Since(start))
}

// Close stops the underlying fsnotify watcher. A running Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
