// Package maintenance runs periodic housekeeping for in-memory state and
// the history log.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Evicter drops idle rate-limit windows.
type Evicter interface {
	Evict() int
}

// SessionCounter purges expired sessions and reports the live count.
type SessionCounter interface {
	Len() int
}

// Pruner deletes history older than a retention age.
type Pruner interface {
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Result summarizes one sweep.
type Result struct {
	Evicted  int
	Sessions int
	Pruned   int64
}

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 10 * time.Minute

// Worker sweeps on a fixed interval until its context ends.
type Worker struct {
	limiter   Evicter
	sessions  SessionCounter
	history   Pruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewWorker creates a worker. A nil history or non-positive retention skips
// pruning; a non-positive interval falls back to DefaultInterval.
func NewWorker(limiter Evicter, sessions SessionCounter, history Pruner, retention, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		limiter:   limiter,
		sessions:  sessions,
		history:   history,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs the sweep loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		w.logger.Info("Maintenance worker started", "interval", w.interval, "retention", w.retention)

		for {
			select {
			case <-ticker.C:
				w.Sweep(ctx)
			case <-ctx.Done():
				w.logger.Info("Maintenance worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep runs one round of housekeeping.
func (w *Worker) Sweep(ctx context.Context) Result {
	var res Result
	if w.limiter != nil {
		res.Evicted = w.limiter.Evict()
	}
	if w.sessions != nil {
		res.Sessions = w.sessions.Len()
	}

	if w.history != nil && w.retention > 0 {
		pruned, err := w.history.PruneOlderThan(ctx, w.retention)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Debug("Maintenance prune canceled", "error", err)
			} else {
				w.logger.Error("Maintenance failed to prune history", "error", err)
			}
		}
		res.Pruned = pruned
	}

	if res.Evicted > 0 || res.Pruned > 0 {
		w.logger.Info("Maintenance sweep completed",
			"evicted_users", res.Evicted,
			"live_sessions", res.Sessions,
			"pruned_records", res.Pruned)
	}
	return res
}
