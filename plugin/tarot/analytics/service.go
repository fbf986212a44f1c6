// Package analytics reports cache effectiveness: hit rates, estimated cost
// savings, response-time comparisons, and hourly historical snapshots.
//
// Hit and miss figures are approximations derived from the cache records
// themselves. A record last used inside the window contributes its full hit
// count as hit traffic; a record created inside the window that was never
// read again counts as one miss, since its creation corresponds to one
// generation the cache could not serve.
package analytics

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/plugin/tarot/strategy"
	"github.com/mystica-ai/mystica/store"
)

const (
	// estimatedCostPerGenerationUSD is the planning figure for one LLM
	// interpretation call, used to express hits as money saved.
	estimatedCostPerGenerationUSD = 0.02

	// dailyGenerationQuota is the provider's daily request allowance.
	dailyGenerationQuota = 1000

	// avgCacheResponseTimeMs and avgAiResponseTimeMs are fixed baseline
	// figures. Cache reads are index lookups; generation calls are dominated
	// by provider latency.
	avgCacheResponseTimeMs = 50
	avgAiResponseTimeMs    = 1500
)

// Service aggregates cache analytics from the strategy engine and the store.
type Service struct {
	strategy *strategy.Engine
	store    *store.Store
	clock    func() time.Time
}

// NewService creates an analytics service.
func NewService(engine *strategy.Engine, st *store.Store) *Service {
	return &Service{
		strategy: engine,
		store:    st,
		clock:    time.Now,
	}
}

// HitRateStats summarizes serving traffic over a window.
type HitRateStats struct {
	TotalRequests     int64   `json:"totalRequests"`
	CacheHits         int64   `json:"cacheHits"`
	CacheMisses       int64   `json:"cacheMisses"`
	HitRatePercentage float64 `json:"hitRatePercentage"`
}

// HitRate reports cache effectiveness over the trailing window. A zero or
// negative windowHours defaults to 24.
func (s *Service) HitRate(ctx context.Context, windowHours int) (*HitRateStats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	end := s.clock()
	return s.hitRateBetween(ctx, end.Add(-time.Duration(windowHours)*time.Hour), end)
}

// hitRateBetween sums the hit counts of records used within the range as hit
// traffic, and counts records created within the range that were never read
// again as misses.
func (s *Service) hitRateBetween(ctx context.Context, start, end time.Time) (*HitRateStats, error) {
	used, err := s.store.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{
		LastUsedAfter:  &start,
		LastUsedBefore: &end,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recently used cache records")
	}
	var hits int64
	for _, record := range used {
		hits += int64(record.HitCount)
	}

	neverHit := int32(0)
	misses, err := s.store.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{
		CreatedAfter:  &start,
		CreatedBefore: &end,
		MaxHitCount:   &neverHit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count cache misses")
	}

	stats := &HitRateStats{
		TotalRequests: hits + misses,
		CacheHits:     hits,
		CacheMisses:   misses,
	}
	if stats.TotalRequests > 0 {
		stats.HitRatePercentage = float64(hits) / float64(stats.TotalRequests) * 100
	}
	return stats, nil
}

// SavingsReport expresses cache hits as avoided generation cost and quota.
type SavingsReport struct {
	WindowHours           int     `json:"windowHours"`
	CacheHits             int64   `json:"cacheHits"`
	EstimatedCostSavedUSD float64 `json:"estimatedCostSavedUsd"`
	QuotaSavedPercent     float64 `json:"quotaSavedPercent"`
}

// Savings estimates generation cost and daily quota avoided by cache hits
// over the trailing window.
func (s *Service) Savings(ctx context.Context, windowHours int) (*SavingsReport, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	stats, err := s.HitRate(ctx, windowHours)
	if err != nil {
		return nil, err
	}

	days := float64(windowHours) / 24
	if days < 1 {
		days = 1
	}
	return &SavingsReport{
		WindowHours:           windowHours,
		CacheHits:             stats.CacheHits,
		EstimatedCostSavedUSD: float64(stats.CacheHits) * estimatedCostPerGenerationUSD,
		QuotaSavedPercent:     float64(stats.CacheHits) / (dailyGenerationQuota * days) * 100,
	}, nil
}

// ResponseTimes compares cached reads against live generation.
type ResponseTimes struct {
	AvgCacheResponseTimeMs float64 `json:"avgCacheResponseTimeMs"`
	AvgAiResponseTimeMs    float64 `json:"avgAiResponseTimeMs"`
	ImprovementFactor      float64 `json:"improvementFactor"`
}

// ResponseTimes returns the baseline latency comparison.
func (s *Service) ResponseTimes() *ResponseTimes {
	return &ResponseTimes{
		AvgCacheResponseTimeMs: avgCacheResponseTimeMs,
		AvgAiResponseTimeMs:    avgAiResponseTimeMs,
		ImprovementFactor:      avgAiResponseTimeMs / avgCacheResponseTimeMs,
	}
}

// TopCombinations returns the most requested live combinations. A zero or
// negative limit defaults to 10.
func (s *Service) TopCombinations(ctx context.Context, limit int) ([]*strategy.TopCombination, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.strategy.TopCombinations(ctx, limit)
}

// RecordHourlySnapshot persists an aggregated metrics row for the current
// hour bucket. Re-running within the same hour replaces the bucket, so the
// snapshot always reflects the full hour observed so far.
func (s *Service) RecordHourlySnapshot(ctx context.Context) (*store.CacheMetricsSnapshot, error) {
	now := s.clock()
	bucket := now.Truncate(time.Hour)

	stats, err := s.hitRateBetween(ctx, bucket, bucket.Add(time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute hourly hit rate")
	}

	snapshot, err := s.store.UpsertCacheMetricsSnapshot(ctx, &store.UpsertCacheMetricsSnapshot{
		HourBucket:             bucket,
		TotalRequests:          stats.TotalRequests,
		CacheHits:              stats.CacheHits,
		CacheMisses:            stats.CacheMisses,
		HitRatePercentage:      stats.HitRatePercentage,
		AvgCacheResponseTimeMs: avgCacheResponseTimeMs,
		AvgAiResponseTimeMs:    avgAiResponseTimeMs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert metrics snapshot")
	}
	return snapshot, nil
}

// HistoricalMetrics returns hourly snapshots covering the trailing number of
// days, newest first. A zero or negative days defaults to 7.
func (s *Service) HistoricalMetrics(ctx context.Context, days int) ([]*store.CacheMetricsSnapshot, error) {
	if days <= 0 {
		days = 7
	}
	start := s.clock().AddDate(0, 0, -days)
	return s.store.ListCacheMetricsSnapshots(ctx, &store.FindCacheMetricsSnapshot{
		StartTime: &start,
	})
}

// PruneSnapshots deletes snapshots older than the retention period and
// returns how many rows were removed. A zero or negative retentionDays
// defaults to 90.
func (s *Service) PruneSnapshots(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	before := s.clock().AddDate(0, 0, -retentionDays)
	return s.store.DeleteCacheMetricsSnapshots(ctx, &store.DeleteCacheMetricsSnapshot{
		BeforeTime: &before,
	})
}
