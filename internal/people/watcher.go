package people

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the settle window applied when no debounce is
// configured. Editors and scrapers write corpus files in bursts.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc re-ingests the corpus after a change has settled.
type ReloadFunc func(ctx context.Context) error

// Watcher watches a single corpus file and invokes a reload callback once
// changes settle. The parent directory is watched rather than the file
// itself: editors replace files by rename, which would silently drop a watch
// on the file.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   ReloadFunc

	fsw    *fsnotify.Watcher
	stopCh chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatcher creates a watcher for the given corpus file. A non-positive
// debounce falls back to DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, reload ReloadFunc) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		reload:   reload,
		fsw:      fsw,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start blocks processing events until the context is cancelled or Stop is
// called. The parent directory must exist; the corpus file itself may appear
// later.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch corpus directory %s: %w", dir, err)
	}

	slog.Debug("watching corpus file",
		slog.String("path", w.path),
		slog.Duration("debounce", w.debounce),
	)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("corpus watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent filters directory events down to the corpus path and schedules
// a debounced reload. Create covers replace-by-rename; Write covers in-place
// writes. Remove and Rename mean the file is gone until a later Create, so
// there is nothing to reload yet.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.scheduleReload(ctx)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		slog.Debug("corpus file removed, waiting for replacement",
			slog.String("path", w.path),
		)
	}
}

// scheduleReload resets the debounce timer. Rapid write bursts collapse into
// a single reload after the window elapses.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.runReload(ctx)
	})
}

func (w *Watcher) runReload(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	start := time.Now()
	if err := w.reload(ctx); err != nil {
		slog.Warn("corpus reload failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("corpus reloaded",
		slog.String("path", w.path),
		slog.Duration("took", time.Since(start)),
	)
}

// Stop stops watching and releases the underlying watcher.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.stopCh)
	return w.fsw.Close()
}
