// Package watch reloads a file whenever it changes on disk.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long the watcher waits for writes to settle before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a file and calls a handler with the freshly loaded value
// every time the file changes.
type Watcher[T any] struct {
	path     string
	loader   func(path string) (T, error)
	handler  func(T)
	logger   *slog.Logger
	debounce time.Duration
}

// New creates a new Watcher. Nothing is watched until Run is called.
func New[T any](path string, loader func(string) (T, error), handler func(T), logger *slog.Logger) *Watcher[T] {
	return &Watcher[T]{
		path:     path,
		loader:   loader,
		handler:  handler,
		logger:   logger,
		debounce: DefaultDebounce,
	}
}

// SetDebounce overrides DefaultDebounce. Non-positive values are ignored.
func (w *Watcher[T]) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run watches the file until ctx is canceled. Load errors are logged and the
// handler is not called for them.
func (w *Watcher[T]) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fsw.Close()

	// Watch the directory rather than the file: editors that save by
	// renaming a temporary file would otherwise drop the watch.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "failed to watch %q", w.path)
	}

	w.logger.Debug("watching file", "path", w.path, "debounce", w.debounce)

	target := filepath.Clean(w.path)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			w.logger.Debug("file change detected", "path", w.path, "op", ev.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher[T]) reload() {
	v, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("failed to reload file", "path", w.path, "error", err)
		return
	}

	w.logger.Info("file reloaded", "path", w.path)
	w.handler(v)
}
