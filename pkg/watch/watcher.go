package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/twigpack/pkg/config"
)

// ErrRunning is returned by Watch when the watcher is already running.
var ErrRunning = errors.New("watcher already running")

// Change is a file that changed during a debounce window. Op accumulates
// every operation seen for the path.
type Change struct {
	Path string
	Op   fsnotify.Op
}

// Removed reports whether the file is gone at the end of the window.
func (c Change) Removed() bool {
	if c.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	_, err := os.Stat(c.Path)
	return errors.Is(err, os.ErrNotExist)
}

// Handler receives a batch of changes, sorted by path.
type Handler func(ctx context.Context, changes []Change) error

// EventRecorder receives watch metrics. *metrics.Collector implements it.
type EventRecorder interface {
	RecordWatchEvent(op string)
}

// Config contains configuration for the watcher.
type Config struct {
	// Paths are the files or directories to watch. Directories are watched
	// recursively.
	Paths []string

	// Debounce is the quiet period after the last event before a batch is
	// delivered (default: 100ms).
	Debounce time.Duration

	// Extensions is the list of file extensions to watch (e.g., ".twig").
	Extensions []string

	// SkipHidden controls whether to skip hidden files and directories.
	SkipHidden bool
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() *Config {
	return &Config{
		Debounce:   config.DefaultWatchDebounce,
		Extensions: []string{config.DefaultWatchExtension},
		SkipHidden: config.DefaultWatchSkipHidden,
	}
}

// FromWatchConfig returns the watcher configuration of cfg for paths.
func FromWatchConfig(cfg *config.WatchConfig, paths []string) *Config {
	return &Config{
		Paths:      paths,
		Debounce:   cfg.Debounce,
		Extensions: cfg.Extensions,
		SkipHidden: cfg.SkipHidden,
	}
}

// Watcher watches template files and delivers debounced batches of
// changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   *Config
	debounce *Debouncer
	recorder EventRecorder

	mu      sync.Mutex
	running bool
	pending map[string]fsnotify.Op
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithRecorder sets the metrics recorder.
func WithRecorder(r EventRecorder) Option {
	return func(w *Watcher) {
		w.recorder = r
	}
}

// New creates a new watcher.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		logger:   logger.With("component", "watch"),
		config:   cfg,
		debounce: NewDebouncer(cfg.Debounce),
		pending:  make(map[string]fsnotify.Op),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching and calls handle with every batch of changes.
// Handler errors are logged and do not stop the watcher. This is a blocking
// operation that runs until the context is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context, handle Handler) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	for _, path := range w.config.Paths {
		if err := w.addPath(path); err != nil {
			return fmt.Errorf("failed to watch path: %w", err)
		}
	}

	w.logger.Info("file watcher started",
		"paths", w.config.Paths,
		"debounce_ms", w.config.Debounce.Milliseconds(),
	)

	flush := func() {
		changes := w.drain()
		if len(changes) == 0 {
			return
		}
		w.logger.Debug("delivering changes", "count", len(changes))
		if err := handle(ctx, changes); err != nil {
			w.logger.Error("rebuild failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}

			if event.Has(fsnotify.Create) && w.isDir(event.Name) {
				if err := w.addDirectory(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}

			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("file event detected",
				"path", event.Name,
				"op", event.Op.String(),
			)
			if w.recorder != nil {
				w.recorder.RecordWatchEvent(opName(event.Op))
			}

			w.mu.Lock()
			w.pending[event.Name] |= event.Op
			w.mu.Unlock()
			w.debounce.Trigger(flush)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}

			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.debounce.Stop()
		return w.watcher.Close()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// drain returns the pending changes sorted by path and resets them.
func (w *Watcher) drain() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	changes := make([]Change, 0, len(w.pending))
	for path, op := range w.pending {
		changes = append(changes, Change{Path: path, Op: op})
	}
	w.pending = make(map[string]fsnotify.Op)

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func (w *Watcher) addPath(path string) error {
	if w.isDir(path) {
		return w.addDirectory(path)
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return w.watcher.Add(path)
}

// addDirectory adds a directory and all subdirectories to the watcher.
func (w *Watcher) addDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if w.config.SkipHidden && isHidden(path) && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch directory %q: %w", path, err)
			}
			w.logger.Debug("watching directory", "path", path)
		}
		return nil
	})
}

// shouldProcessEvent determines if an event belongs in a batch.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if !w.hasValidExtension(event.Name) {
		return false
	}
	if w.config.SkipHidden && isHidden(event.Name) {
		return false
	}
	return true
}

// hasValidExtension matches the end of the name so that compound
// extensions such as ".html.twig" work.
func (w *Watcher) hasValidExtension(name string) bool {
	if len(w.config.Extensions) == 0 {
		return true
	}
	name = strings.ToLower(name)
	for _, ext := range w.config.Extensions {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (w *Watcher) isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	}
	return "other"
}

// Debouncer collects rapid events and runs the latest callback only after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback after the interval, replacing any pending
// callback.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		if d.stopped {
			cb = nil
		}
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
