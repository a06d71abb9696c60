// Package eviction implements the periodic sweep that reaps idle sessions and
// keeps this instance's registry records current.
package eviction

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/bothub-it/bothub-nlp/server/internal/observability"
	"github.com/bothub-it/bothub-nlp/server/pool"
	"github.com/bothub-it/bothub-nlp/server/registry"
)

// Config tunes the sweep.
type Config struct {
	// SweepInterval is the period between sweeps.
	SweepInterval time.Duration
	// IdleThreshold is how long a session may go without an ask before it
	// is evicted.
	IdleThreshold time.Duration
	// MemoryCutoffPercent gates this instance's availability for new
	// sessions.
	MemoryCutoffPercent float64
}

// Runner sweeps the pool on a fixed period. Each sweep refreshes the instance
// heartbeat, evicts idle sessions, re-publishes the session list from live
// pool contents and recomputes availability from memory pressure.
type Runner struct {
	pool     *pool.Pool
	registry *registry.Registry
	config   Config

	// memUsedPercent is swappable so tests can simulate memory pressure.
	memUsedPercent func() (float64, error)

	metrics *observability.Metrics
}

// SetMetrics attaches a collector that counts evictions per sweep.
func (r *Runner) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// NewRunner creates an eviction runner.
func NewRunner(p *pool.Pool, reg *registry.Registry, config Config) *Runner {
	if config.SweepInterval <= 0 {
		config.SweepInterval = 60 * time.Second
	}
	if config.IdleThreshold <= 0 {
		config.IdleThreshold = 5 * time.Minute
	}
	if config.MemoryCutoffPercent <= 0 {
		config.MemoryCutoffPercent = 80
	}
	return &Runner{
		pool:           p,
		registry:       reg,
		config:         config,
		memUsedPercent: systemMemUsedPercent,
	}
}

// Run starts the sweep loop and blocks until the context is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("eviction runner stopped")
			return
		}
	}
}

// RunOnce performs a single sweep (exposed for manual trigger and tests).
func (r *Runner) RunOnce(ctx context.Context) {
	// Heartbeat first: a sweep that evicts nothing must still prove this
	// instance alive.
	if err := r.registry.Heartbeat(ctx); err != nil {
		slog.Error("failed to refresh heartbeat", "error", err)
	}

	kept, evicted := r.pool.SweepIdle(r.config.IdleThreshold,
		func(entry *pool.Entry) {
			if err := r.registry.RefreshSession(ctx, entry.SessionKey()); err != nil {
				slog.Error("failed to refresh session ownership",
					"session", entry.SessionKey(), "error", err)
			}
		},
		func(entry *pool.Entry) {
			// An eviction error leaks one registry entry until its
			// TTL lapses; aborting the whole sweep would be worse.
			if err := r.registry.ReleaseSession(ctx, entry.SessionKey()); err != nil {
				slog.Error("failed to release evicted session",
					"session", entry.SessionKey(), "error", err)
			}
		},
	)
	if r.metrics != nil {
		r.metrics.RecordEvictions(evicted)
	}
	slog.Info("eviction sweep completed", "kept", kept, "evicted", evicted)

	// Re-derive the session list from what actually survived, with the
	// registry TTL attached, so a crashed instance's list expires with
	// its heartbeat.
	if err := r.registry.PublishSessions(ctx, r.pool.SessionKeys()); err != nil {
		slog.Error("failed to publish session list", "error", err)
	}

	usedPercent, err := r.memUsedPercent()
	if err != nil {
		slog.Error("failed to sample memory usage", "error", err)
		return
	}
	if err := r.registry.UpdateAvailability(ctx, usedPercent, r.config.MemoryCutoffPercent); err != nil {
		slog.Error("failed to update availability", "error", err)
	}
}

func systemMemUsedPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
