package settings

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the watcher's view of the settings. Err is set when the last load
// failed; Loaded stays false until the first answer arrives.
type State struct {
	Loaded   bool
	Settings AppSettings
	Err      error
}

// Maintenance reports whether the site must show the maintenance view. A
// failed load counts as maintenance.
func (s State) Maintenance() bool {
	return s.Err != nil || s.Settings.MaintenanceMode
}

// Watcher keeps the process-wide settings current and notifies subscribers.
// Its lifecycle is independent of any session.
type Watcher struct {
	provider Provider
	logger   *zap.Logger
	interval time.Duration

	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)
}

// WatcherOption customises the Watcher.
type WatcherOption func(*Watcher)

// WithRefreshInterval polls providers that cannot push changes.
func WithRefreshInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger used for load failures.
func WithLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher constructs a watcher over provider.
func NewWatcher(provider Provider, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		provider: provider,
		logger:   zap.NewNop(),
		subs:     map[int]func(State){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Load fetches the settings once and publishes the result.
func (w *Watcher) Load(ctx context.Context) State {
	s, err := w.provider.AppSettings(ctx)
	return w.apply(s, err)
}

// Snapshot returns the last published state.
func (w *Watcher) Snapshot() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Subscribe calls fn on every published state.
func (w *Watcher) Subscribe(fn func(State)) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.subs[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Run keeps the state current until ctx ends: watchable providers stream
// changes, others are polled when a refresh interval is set.
func (w *Watcher) Run(ctx context.Context) error {
	if watchable, ok := w.provider.(Watchable); ok {
		for {
			err := watchable.Watch(ctx, func(s AppSettings, err error) { w.apply(s, err) })
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("settings watch stopped, retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	}
	if w.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Load(ctx)
		}
	}
}

func (w *Watcher) apply(s AppSettings, err error) State {
	if err != nil {
		w.logger.Error("settings load failed", zap.Error(err))
	}
	w.mu.Lock()
	prev := w.state
	next := State{Loaded: true, Settings: s, Err: err}
	w.state = next
	subs := make([]func(State), 0, len(w.subs))
	for id := 1; id <= w.nextID; id++ {
		if fn, ok := w.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	w.mu.Unlock()

	if prev.Loaded && prev.Settings == next.Settings && (prev.Err == nil) == (next.Err == nil) {
		return next
	}
	if prev.Settings.MaintenanceMode != next.Settings.MaintenanceMode {
		w.logger.Info("maintenance mode changed", zap.Bool("maintenance", next.Settings.MaintenanceMode))
	}
	for _, fn := range subs {
		fn(next)
	}
	return next
}
