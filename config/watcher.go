package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/contextfit/types"
)

// ReloadFunc receives the result of reloading a watched configuration
// file. On failure cfg is nil and err carries the cause; subscribers keep
// the configuration they already hold.
type ReloadFunc func(cfg *Config, err error)

// Watcher polls a configuration file and pushes reloaded configurations to
// subscribers when the modification time advances. Polling keeps the
// watcher portable; the interval bounds reload latency.
type Watcher struct {
	mu       sync.Mutex
	loader   *Loader
	interval time.Duration
	logger   *zap.Logger

	running   bool
	stop      chan struct{}
	callbacks []ReloadFunc

	// Zero when the file is not currently tracked, so the next successful
	// stat counts as a change.
	lastMod time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the file is checked. Defaults to one
// second.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger. Defaults to a nop logger.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger.With(zap.String("component", "config_watcher"))
		}
	}
}

// NewWatcher creates a watcher for the loader's configuration file. The
// file may not exist yet; its creation then counts as the first change.
func NewWatcher(loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || loader.path == "" {
		return nil, types.NewConfigError("watcher requires a loader with a configuration file path")
	}

	w := &Watcher{
		loader:   loader,
		interval: time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := os.Stat(loader.path); err != nil {
		if !os.IsNotExist(err) {
			return nil, types.NewConfigError("stat %s", loader.path).WithCause(err)
		}
		w.logger.Warn("config file does not exist yet, watching for creation",
			zap.String("path", loader.path))
	}
	return w, nil
}

// Path returns the watched file path.
func (w *Watcher) Path() string { return w.loader.path }

// OnReload subscribes to reload results.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start begins polling. It returns an error when the watcher is already
// running. The current file state is taken as the baseline; only later
// modifications trigger reloads.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return types.NewConfigError("watcher already running")
	}
	w.running = true
	w.stop = make(chan struct{})

	w.lastMod = time.Time{}
	if info, err := os.Stat(w.loader.path); err == nil {
		w.lastMod = info.ModTime()
	}

	go w.loop(ctx, w.stop)

	w.logger.Info("config watcher started",
		zap.String("path", w.loader.path),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop ends polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stop)
	w.running = false
	w.logger.Info("config watcher stopped")
}

// IsRunning reports whether the polling loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.loader.path)
	if err != nil {
		w.mu.Lock()
		existed := !w.lastMod.IsZero()
		w.lastMod = time.Time{}
		w.mu.Unlock()

		if existed && os.IsNotExist(err) {
			w.logger.Warn("config file removed, keeping last loaded configuration",
				zap.String("path", w.loader.path))
		}
		return
	}

	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()

	if changed {
		w.reload()
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("config reload failed", zap.Error(err))
	} else {
		w.logger.Info("config reloaded", zap.String("path", w.loader.path))
	}

	w.mu.Lock()
	callbacks := make([]ReloadFunc, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg, err)
	}
}
