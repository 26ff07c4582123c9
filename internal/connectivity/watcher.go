// Package connectivity turns periodic reachability probes into "connectivity regained" signals.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultInterval = 10 * time.Second

// Probe reports whether the remote store can be reached. A nil error means online.
type Probe func(ctx context.Context) error

type Watcher struct {
	probe    Probe
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
}

// New assumes the store is reachable until a probe says otherwise, so a process that starts
// online emits nothing.
func New(probe Probe, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		probe:    probe,
		interval: interval,
		logger:   logger,
		online:   true,
	}
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Check probes once and reports whether this probe moved the watcher from offline to online.
func (w *Watcher) Check(ctx context.Context) bool {
	err := w.probe(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	was := w.online
	w.online = err == nil
	switch {
	case err != nil && was:
		w.logger.Warn("remote store unreachable", slog.String("error", err.Error()))
	case err == nil && !was:
		w.logger.Info("remote store reachable again")
		return true
	}
	return false
}

// Run probes every interval until ctx is done. The returned channel receives one value per
// offline to online transition and is closed when Run stops. Signals the consumer hasn't
// taken yet are coalesced.
func (w *Watcher) Run(ctx context.Context) <-chan struct{} {
	signals := make(chan struct{}, 1)
	go func() {
		defer close(signals)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !w.Check(ctx) {
					continue
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			}
		}
	}()
	return signals
}
