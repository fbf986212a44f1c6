// Package strategy implements the cache lookup strategy: multi-level
// resolution (exact key, then card-level fuzzy matching) and
// popularity-driven dynamic TTLs.
package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/plugin/tarot/cachekey"
	"github.com/mystica-ai/mystica/store"
)

// Level identifies which lookup level produced a resolution.
type Level string

const (
	// LevelExact is a hit on the exact derived cache key.
	LevelExact Level = "exact"
	// LevelCards is a hit on a record sharing the same card combination and
	// spread scope, found via card-level matching.
	LevelCards Level = "cards"
	// LevelMiss means no level produced a candidate.
	LevelMiss Level = "miss"
)

// Dynamic TTL tiers in days, keyed by popularity.
const (
	ttlPopularDays  = 90 // hitCount >= 10
	ttlStandardDays = 30 // 3 <= hitCount < 10
	ttlColdDays     = 7  // hitCount < 3
)

// ttlRefreshToleranceDays avoids rewriting expiry over sub-day imprecision.
const ttlRefreshToleranceDays = 1

// CalculateDynamicTTL maps a record's popularity to its TTL in days.
func CalculateDynamicTTL(hitCount int32) int {
	switch {
	case hitCount >= 10:
		return ttlPopularDays
	case hitCount >= 3:
		return ttlStandardDays
	default:
		return ttlColdDays
	}
}

// Engine resolves interpretation lookups against the cache.
type Engine struct {
	cache *cache.Service
	store *store.Store

	clock func() time.Time
}

// NewEngine creates a strategy engine on top of the interpretation cache.
func NewEngine(cacheService *cache.Service) *Engine {
	return &Engine{
		cache: cacheService,
		store: cacheService.Store(),
		clock: time.Now,
	}
}

// ResolveRequest describes a lookup.
type ResolveRequest struct {
	CardCombination []store.CardPlacement
	SpreadID        *int32
	QuestionHash    string
	// QuestionText enables the card-level fallback when present.
	QuestionText string
}

// Resolution is the outcome of a multi-level lookup.
type Resolution struct {
	Record *store.CachedInterpretation
	Level  Level
}

// Resolve performs the multi-level lookup: exact key first, then card-level
// matching when question text is available. Only live records participate at
// every level.
//
// The card level matches on the canonical card combination within the same
// spread scope and returns the first live candidate; it does not compare
// question text against the stored question, because the original question is
// not retained on the record. See the similarity package for the scorer the
// host applies when it does hold both questions.
func (e *Engine) Resolve(ctx context.Context, req *ResolveRequest) (*Resolution, error) {
	key := cachekey.DeriveCacheKey(req.CardCombination, req.SpreadID, req.QuestionHash)
	record, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return &Resolution{Record: record, Level: LevelExact}, nil
	}

	if req.QuestionText != "" {
		record, err = e.resolveByCards(ctx, req)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return &Resolution{Record: record, Level: LevelCards}, nil
		}
	}

	// A meanings-based level would slot in here; reaching this point is a miss.
	return &Resolution{Level: LevelMiss}, nil
}

func (e *Engine) resolveByCards(ctx context.Context, req *ResolveRequest) (*store.CachedInterpretation, error) {
	now := e.clock()
	find := &store.FindCachedInterpretation{ExcludeExpiredAt: &now}
	if req.SpreadID != nil {
		find.SpreadID = req.SpreadID
	} else {
		find.NoSpread = true
	}

	candidates, err := e.store.ListCachedInterpretations(ctx, find)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list card-level candidates")
	}

	canonical := cachekey.CanonicalCombination(req.CardCombination)
	for _, candidate := range candidates {
		if cachekey.CanonicalCombination(candidate.CardCombination) != canonical {
			continue
		}
		if err := e.store.IncrementCachedInterpretationHit(ctx, candidate.ID, now); err != nil {
			return nil, errors.Wrap(err, "failed to increment hit count")
		}
		candidate.HitCount++
		candidate.LastUsedAt = now
		return candidate, nil
	}
	return nil, nil
}

// RefreshDynamicTTLs recomputes every live record's target TTL from its
// current popularity and rewrites expiresAt where the difference against the
// record's actual TTL window exceeds one day. Per-record failures are logged
// and skipped; the returned count covers successful updates only.
func (e *Engine) RefreshDynamicTTLs(ctx context.Context) (int, error) {
	now := e.clock()
	records, err := e.store.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{ExcludeExpiredAt: &now})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list live cache records")
	}

	updated := 0
	for _, record := range records {
		targetDays := CalculateDynamicTTL(record.HitCount)
		actualDays := int(record.ExpiresAt.Sub(record.CreatedAt).Round(24*time.Hour) / (24 * time.Hour))

		diff := targetDays - actualDays
		if diff < 0 {
			diff = -diff
		}
		if diff <= ttlRefreshToleranceDays {
			continue
		}

		expiresAt := now.Add(time.Duration(targetDays) * 24 * time.Hour)
		if err := e.store.UpdateCachedInterpretation(ctx, &store.UpdateCachedInterpretation{
			ID:        record.ID,
			ExpiresAt: &expiresAt,
		}); err != nil {
			slog.Warn("failed to refresh cache record TTL", "id", record.ID, "error", err)
			continue
		}
		updated++
	}

	return updated, nil
}

// TopCombination is a warming candidate.
type TopCombination struct {
	CardCombination []store.CardPlacement `json:"cardCombination"`
	SpreadID        *int32                `json:"spreadId,omitempty"`
	HitCount        int32                 `json:"hitCount"`
}

// TopCombinations returns the most requested live combinations, ordered by
// hit count descending. Used as the warming candidate list.
func (e *Engine) TopCombinations(ctx context.Context, limit int) ([]*TopCombination, error) {
	if limit <= 0 {
		limit = 100
	}

	now := e.clock()
	records, err := e.store.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{
		ExcludeExpiredAt: &now,
		OrderByHitCount:  true,
		Limit:            limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list top combinations")
	}

	combinations := make([]*TopCombination, 0, len(records))
	for _, record := range records {
		combinations = append(combinations, &TopCombination{
			CardCombination: record.CardCombination,
			SpreadID:        record.SpreadID,
			HitCount:        record.HitCount,
		})
	}
	return combinations, nil
}

// HitRateStats summarizes cache effectiveness over a date range.
type HitRateStats struct {
	TotalRequests     int64   `json:"totalRequests"`
	CacheHits         int64   `json:"cacheHits"`
	CacheMisses       int64   `json:"cacheMisses"`
	HitRatePercentage float64 `json:"hitRatePercentage"`
}

// HitRate counts records used within the range as hits and records created
// within the range as misses. New-record creation stands in for true miss
// events, so misses are an approximation.
func (e *Engine) HitRate(ctx context.Context, start, end time.Time) (*HitRateStats, error) {
	hits, err := e.store.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{
		LastUsedAfter:  &start,
		LastUsedBefore: &end,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count cache hits")
	}

	misses, err := e.store.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{
		CreatedAfter:  &start,
		CreatedBefore: &end,
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
