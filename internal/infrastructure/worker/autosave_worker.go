package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sessions is what the autosave worker needs from the session service
type Sessions interface {
	// AutosaveAll writes a draft for every session changed since its last save
	AutosaveAll(ctx context.Context) int
	// PruneIdle forgets sessions untouched for longer than maxIdle
	PruneIdle(maxIdle time.Duration) int
}

// AutosaveConfig holds configuration for the autosave worker
type AutosaveConfig struct {
	Interval    time.Duration
	IdleTimeout time.Duration
}

// DefaultAutosaveConfig returns default configuration
func DefaultAutosaveConfig() AutosaveConfig {
	return AutosaveConfig{
		Interval:    30 * time.Second,
		IdleTimeout: 2 * time.Hour,
	}
}

// AutosaveStats is a snapshot of the worker counters
type AutosaveStats struct {
	Ticks   int
	Saved   int
	Pruned  int
	LastRun time.Time
}

// AutosaveWorker periodically saves drafts of changed sessions
type AutosaveWorker struct {
	config   AutosaveConfig
	sessions Sessions
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	stats  AutosaveStats
}

// NewAutosaveWorker creates an autosave worker. Zero config fields take
// their defaults.
func NewAutosaveWorker(config AutosaveConfig, sessions Sessions, logger *zap.Logger) *AutosaveWorker {
	def := DefaultAutosaveConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutosaveWorker{
		config:   config,
		sessions: sessions,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *AutosaveWorker) Name() string {
	return "AutosaveWorker"
}

// Start begins the ticker loop
func (w *AutosaveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("autosave worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Info("AutosaveWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("idle_timeout", w.config.IdleTimeout))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop ends the loop and waits for an in-progress tick to finish
func (w *AutosaveWorker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	w.cancel = nil
	done := w.done
	w.mu.Unlock()

	<-done

	stats := w.Stats()
	w.logger.Info("AutosaveWorker stopped",
		zap.Int("saved", stats.Saved),
		zap.Int("pruned", stats.Pruned))
	return nil
}

func (w *AutosaveWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one autosave pass
func (w *AutosaveWorker) Tick(ctx context.Context) {
	saved := w.sessions.AutosaveAll(ctx)
	pruned := w.sessions.PruneIdle(w.config.IdleTimeout)

	w.mu.Lock()
	w.stats.Ticks++
	w.stats.Saved += saved
	w.stats.Pruned += pruned
	w.stats.LastRun = time.Now()
	w.mu.Unlock()

	if saved > 0 || pruned > 0 {
		w.logger.Debug("Autosave pass",
			zap.Int("saved", saved),
			zap.Int("pruned", pruned))
	}
}

// Stats returns a copy of the worker counters
func (w *AutosaveWorker) Stats() AutosaveStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
