// Package cache implements the interpretation cache: a fast in-process tier
// in front of the durable store, with TTL and hit-count bookkeeping and
// direct, selective and cascading invalidation.
//
// Per cache key the lifecycle is Absent -> Live -> Absent. An expired or
// invalidated entry is never returned, even if physically still present.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/store"
	fastcache "github.com/mystica-ai/mystica/store/cache"
)

// DefaultTTLDays is the TTL applied by Put when none is requested.
const DefaultTTLDays = 30

// ServiceConfig configures the interpretation cache service.
type ServiceConfig struct {
	// FastTTL bounds the staleness of the in-process tier. It must stay well
	// under the minimum durable TTL; the durable store remains authoritative.
	FastTTL time.Duration
	// FastMaxItems bounds the in-process tier size.
	FastMaxItems int
}

// DefaultServiceConfig returns the default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		FastTTL:      time.Hour,
		FastMaxItems: 5000,
	}
}

// Service is the interpretation cache.
type Service struct {
	store   *store.Store
	fast    *fastcache.Cache
	fastTTL time.Duration
	metrics *InvalidationMetrics

	clock func() time.Time
}

// NewService creates a new interpretation cache service.
func NewService(st *store.Store, cfg ServiceConfig) *Service {
	if cfg.FastTTL <= 0 {
		cfg.FastTTL = time.Hour
	}
	if cfg.FastMaxItems <= 0 {
		cfg.FastMaxItems = 5000
	}

	return &Service{
		store: st,
		fast: fastcache.New(fastcache.Config{
			DefaultTTL:      cfg.FastTTL,
			CleanupInterval: 10 * time.Minute,
			MaxItems:        cfg.FastMaxItems,
		}),
		fastTTL: cfg.FastTTL,
		metrics: &InvalidationMetrics{},
		clock:   time.Now,
	}
}

// Close releases the in-process tier.
func (s *Service) Close() {
	s.fast.Close()
}

// Get returns the live cached interpretation for the key, or nil on a miss.
// A read-through from the durable store increments the record's hit count and
// refreshes lastUsedAt; fast-tier hits do not touch the durable record.
// Concurrent read-throughs for the same key may each increment independently;
// the increment itself is a single atomic store operation, so counts are
// never lost.
func (s *Service) Get(ctx context.Context, key string) (*store.CachedInterpretation, error) {
	now := s.clock()

	if v, ok := s.fast.Get(ctx, key); ok {
		record := v.(*store.CachedInterpretation)
		if !record.IsExpired(now) {
			return record, nil
		}
		s.fast.Delete(ctx, key)
	}

	record, err := s.store.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{CacheKey: &key})
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up cached interpretation")
	}
	if record == nil || record.IsExpired(now) {
		return nil, nil
	}

	if err := s.store.IncrementCachedInterpretationHit(ctx, record.ID, now); err != nil {
		return nil, errors.Wrap(err, "failed to increment hit count")
	}
	record.HitCount++
	record.LastUsedAt = now

	s.fast.SetWithTTL(ctx, key, record, s.fastTTL)
	return record, nil
}

// PutRequest holds the data for caching a freshly generated interpretation.
// InterpretationText must already be sanitized by the caller.
type PutRequest struct {
	CacheKey        string
	TarotistaID     *int32
	SpreadID        *int32
	CardCombination []store.CardPlacement
	QuestionHash    string
	Text            string
	// TTLDays defaults to DefaultTTLDays when zero.
	TTLDays int
}

// Put stores an interpretation under the given key. A concurrent Put of the
// same key is treated as success: the existing record wins and is re-read to
// refresh the fast tier.
func (s *Service) Put(ctx context.Context, req *PutRequest) error {
	now := s.clock()
	ttlDays := req.TTLDays
	if ttlDays == 0 {
		ttlDays = DefaultTTLDays
	}

	record := &store.CachedInterpretation{
		UID:                uuid.New().String(),
		CacheKey:           req.CacheKey,
		TarotistaID:        req.TarotistaID,
		SpreadID:           req.SpreadID,
		CardCombination:    req.CardCombination,
		QuestionHash:       req.QuestionHash,
		InterpretationText: req.Text,
		HitCount:           0,
		CreatedAt:          now,
		LastUsedAt:         now,
		ExpiresAt:          now.Add(time.Duration(ttlDays) * 24 * time.Hour),
	}

	created, err := s.store.CreateCachedInterpretation(ctx, record)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			existing, findErr := s.store.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{CacheKey: &req.CacheKey})
			if findErr != nil {
				return errors.Wrap(findErr, "failed to re-read cached interpretation after conflict")
			}
			if existing != nil && !existing.IsExpired(now) {
				s.fast.SetWithTTL(ctx, req.CacheKey, existing, s.fastTTL)
			}
			return nil
		}
		return errors.Wrap(err, "failed to insert cached interpretation")
	}

	s.fast.SetWithTTL(ctx, req.CacheKey, created, s.fastTTL)
	return nil
}

// InvalidateByTarotista deletes every cached interpretation owned by the
// tarotista and returns the deleted count.
func (s *Service) InvalidateByTarotista(ctx context.Context, tarotistaID int32) (int64, error) {
	deleted, err := s.store.DeleteCachedInterpretations(ctx, &store.DeleteCachedInterpretation{TarotistaID: &tarotistaID})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to invalidate cache for tarotista %d", tarotistaID)
	}

	s.metrics.recordByTarotista()
	slog.Info("cache invalidated by tarotista", "tarotista_id", tarotistaID, "deleted", deleted)
	return deleted, nil
}

// InvalidateSelective deletes only the tarotista's cached interpretations
// whose combination references any of the affected cards. A call matching
// nothing is a no-op, not an error.
func (s *Service) InvalidateSelective(ctx context.Context, tarotistaID int32, affectedCardIDs []int32) (int64, error) {
	records, err := s.store.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{TarotistaID: &tarotistaID})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to load cache records for tarotista %d", tarotistaID)
	}

	var ids []int32
	for _, record := range records {
		if record.ContainsAnyCard(affectedCardIDs) {
			ids = append(ids, record.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := s.store.DeleteCachedInterpretations(ctx, &store.DeleteCachedInterpretation{IDs: ids})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to invalidate %d cache records for tarotista %d", len(ids), tarotistaID)
	}

	s.metrics.recordByMeanings()
	slog.Info("cache invalidated by card meanings",
		"tarotista_id", tarotistaID,
		"affected_cards", affectedCardIDs,
		"deleted", deleted,
	)
	return deleted, nil
}

// InvalidateCascade removes everything derived from the tarotista's
// configuration. Today that is the same set as InvalidateByTarotista; this is
// the extension point for finer-grained cascade rules.
func (s *Service) InvalidateCascade(ctx context.Context, tarotistaID int32) (int64, error) {
	return s.InvalidateByTarotista(ctx, tarotistaID)
}

// ClearAll resets the fast tier and unconditionally deletes every durable
// record.
func (s *Service) ClearAll(ctx context.Context) error {
	s.fast.Clear(ctx)

	if _, err := s.store.DeleteCachedInterpretations(ctx, &store.DeleteCachedInterpretation{All: true}); err != nil {
		return errors.Wrap(err, "failed to clear interpretation cache")
	}
	slog.Info("interpretation cache cleared")
	return nil
}

// SweepExpired deletes records whose expiry has passed. Safe to run
// concurrently with normal traffic: deleting an already-deleted record is a
// no-op.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.store.DeleteCachedInterpretations(ctx, &store.DeleteCachedInterpretation{ExpiredBefore: &now})
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep expired cache records")
	}
	return deleted, nil
}

// SweepLowUsage deletes records with fewer than minHits hits created more
// than olderThanDays ago.
func (s *Service) SweepLowUsage(ctx context.Context, minHits int32, olderThanDays int) (int64, error) {
	before := s.clock().AddDate(0, 0, -olderThanDays)
	deleted, err := s.store.DeleteCachedInterpretations(ctx, &store.DeleteCachedInterpretation{
		LowUsage: &store.LowUsageFilter{MaxHits: minHits, Before: before},
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep low-usage cache records")
	}
	return deleted, nil
}

// Stats returns the aggregate view over the durable cache table.
func (s *Service) Stats(ctx context.Context) (*store.CachedInterpretationStats, error) {
	stats, err := s.store.GetCachedInterpretationStats(ctx, s.clock())
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate cache stats")
	}
	return stats, nil
}

// InvalidationMetrics returns the process-lifetime invalidation counters.
func (s *Service) InvalidationMetrics() InvalidationMetricsSnapshot {
	return s.metrics.Snapshot()
}

// Store exposes the underlying store for collaborating services.
func (s *Service) Store() *store.Store {
	return s.store
}
