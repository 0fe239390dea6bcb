package vaultcache

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives the one-time background build and the periodic refresh
// from a single long-lived goroutine, so at most one cache-population
// operation is ever outstanding.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that ticks every interval.
func NewScheduler(manager *Manager, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{manager: manager, interval: interval, logger: logger}
}

// Run attempts the initial build immediately, then ticks until ctx is
// cancelled. Build and refresh failures are absorbed; the next tick fires
// on schedule regardless.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("vaultcache: scheduler started",
		slog.Duration("interval", s.interval))

	s.RunCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("vaultcache: scheduler stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one population pass: a full build while the cache is
// idle, a refresh once it is ready. Exported so tests can drive the cache
// deterministically instead of waiting on the ticker.
func (s *Scheduler) RunCycle(ctx context.Context) {
	switch s.manager.State() {
	case StateIdle:
		_ = s.manager.Build(ctx)
	case StateReady:
		_ = s.manager.Refresh(ctx)
	default:
		// A build or refresh is already in flight; skip this tick.
	}
}
