package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a BuiltinLoader when its rules file changes on
// disk. Events are debounced so an editor's write-rename dance triggers
// one invalidation, not several.
type Watcher struct {
	watcher  *fsnotify.Watcher
	loader   *BuiltinLoader
	logger   *slog.Logger
	debounce *debouncer
}

// WatcherConfig configures the rules file watcher.
type WatcherConfig struct {
	// DebounceInterval is the quiet period after the last event before
	// the loader is invalidated. Default: 100ms.
	DebounceInterval time.Duration
}

// NewWatcher creates a watcher for the loader's rules file.
func NewWatcher(loader *BuiltinLoader, cfg WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if loader.Path() == "" {
		return nil, fmt.Errorf("loader has no rules file to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher:  fw,
		loader:   loader,
		logger:   logger,
		debounce: newDebouncer(cfg.DebounceInterval),
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
// The parent directory is watched rather than the file itself, so
// replace-by-rename updates keep being seen.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.loader.Path())
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("watching built-in rules file", "path", w.loader.Path())

	target := filepath.Clean(w.loader.Path())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("rules file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove) {
				continue
			}
			w.logger.Debug("rules file event",
				"path", event.Name,
				"op", event.Op.String(),
			)
			w.debounce.trigger(func() {
				w.logger.Info("built-in rules file changed, invalidating cache",
					"path", event.Name,
				)
				w.loader.Invalidate()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("rules file watcher error", "error", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	w.debounce.stop()
	return w.watcher.Close()
}

// debouncer delays a callback until events stop arriving for the
// configured interval. Only the last callback fires.
type debouncer struct {
	interval time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
