// Package scheduler runs the cache maintenance loops: expired-record sweeps,
// low-usage eviction, dynamic TTL refresh, and hourly analytics snapshots.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mystica-ai/mystica/plugin/tarot/analytics"
	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/plugin/tarot/strategy"
)

// Config configures the maintenance intervals and eviction thresholds.
type Config struct {
	SweepInterval      time.Duration // expired + low-usage sweep cadence (default: 6h)
	TTLRefreshInterval time.Duration // dynamic TTL recalculation cadence (default: 24h)
	SnapshotInterval   time.Duration // hourly analytics snapshot cadence (default: 1h)

	LowUsageMinHits       int32 // records below this hit count are eviction candidates (default: 2)
	LowUsageOlderThanDays int   // only candidates older than this are evicted (default: 7)
	SnapshotRetentionDays int   // metrics snapshots older than this are pruned (default: 90)
}

// DefaultConfig returns the default maintenance configuration.
func DefaultConfig() Config {
	return Config{
		SweepInterval:         6 * time.Hour,
		TTLRefreshInterval:    24 * time.Hour,
		SnapshotInterval:      time.Hour,
		LowUsageMinHits:       2,
		LowUsageOlderThanDays: 7,
		SnapshotRetentionDays: 90,
	}
}

// Scheduler owns the background maintenance goroutines.
type Scheduler struct {
	cache     *cache.Service
	strategy  *strategy.Engine
	analytics *analytics.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg Config
}

// New creates a scheduler over the cache maintenance services.
func New(cacheService *cache.Service, engine *strategy.Engine, analyticsService *analytics.Service, cfg Config) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 6 * time.Hour
	}
	if cfg.TTLRefreshInterval <= 0 {
		cfg.TTLRefreshInterval = 24 * time.Hour
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = time.Hour
	}
	if cfg.LowUsageMinHits <= 0 {
		cfg.LowUsageMinHits = 2
	}
	if cfg.LowUsageOlderThanDays <= 0 {
		cfg.LowUsageOlderThanDays = 7
	}
	if cfg.SnapshotRetentionDays <= 0 {
		cfg.SnapshotRetentionDays = 90
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cache:     cacheService,
		strategy:  engine,
		analytics: analyticsService,
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
	}
}

// Start begins the maintenance loops.
func (s *Scheduler) Start() {
	s.wg.Add(3)
	go s.sweepLoop()
	go s.ttlRefreshLoop()
	go s.snapshotLoop()
}

// Close stops the scheduler and waits for the loops to finish.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

// Sweep removes expired and low-usage records immediately.
func (s *Scheduler) Sweep(ctx context.Context) {
	expired, err := s.cache.SweepExpired(ctx, time.Now())
	if err != nil {
		slog.Error("expired cache sweep failed", "error", err)
	} else if expired > 0 {
		slog.Info("swept expired cache records", "deleted", expired)
	}

	lowUsage, err := s.cache.SweepLowUsage(ctx, s.cfg.LowUsageMinHits, s.cfg.LowUsageOlderThanDays)
	if err != nil {
		slog.Error("low-usage cache sweep failed", "error", err)
	} else if lowUsage > 0 {
		slog.Info("swept low-usage cache records", "deleted", lowUsage)
	}
}

// RefreshTTLs recalculates dynamic TTLs immediately.
func (s *Scheduler) RefreshTTLs(ctx context.Context) {
	updated, err := s.strategy.RefreshDynamicTTLs(ctx)
	if err != nil {
		slog.Error("dynamic TTL refresh failed", "error", err)
		return
	}
	if updated > 0 {
		slog.Info("refreshed dynamic cache TTLs", "updated", updated)
	}
}

// Snapshot persists the current hour's analytics bucket immediately.
func (s *Scheduler) Snapshot(ctx context.Context) {
	if _, err := s.analytics.RecordHourlySnapshot(ctx); err != nil {
		slog.Error("hourly metrics snapshot failed", "error", err)
	}

	if _, err := s.analytics.PruneSnapshots(ctx, s.cfg.SnapshotRetentionDays); err != nil {
		slog.Error("metrics snapshot pruning failed", "error", err)
	}
}

func (s *Scheduler) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

func (s *Scheduler) ttlRefreshLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TTLRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RefreshTTLs(s.ctx)
		}
	}
}

func (s *Scheduler) snapshotLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			// Final snapshot so the current hour is not lost on shutdown.
			s.Snapshot(context.Background())
			return
		case <-ticker.C:
			s.Snapshot(s.ctx)
		}
	}
}
