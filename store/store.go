package store

import (
	"context"
	"time"

	"github.com/mystica-ai/mystica/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateCachedInterpretation(ctx context.Context, create *CachedInterpretation) (*CachedInterpretation, error) {
	return s.driver.CreateCachedInterpretation(ctx, create)
}

func (s *Store) GetCachedInterpretation(ctx context.Context, find *FindCachedInterpretation) (*CachedInterpretation, error) {
	return s.driver.GetCachedInterpretation(ctx, find)
}

func (s *Store) ListCachedInterpretations(ctx context.Context, find *FindCachedInterpretation) ([]*CachedInterpretation, error) {
	return s.driver.ListCachedInterpretations(ctx, find)
}

func (s *Store) CountCachedInterpretations(ctx context.Context, find *FindCachedInterpretation) (int64, error) {
	return s.driver.CountCachedInterpretations(ctx, find)
}

func (s *Store) IncrementCachedInterpretationHit(ctx context.Context, id int32, now time.Time) error {
	return s.driver.IncrementCachedInterpretationHit(ctx, id, now)
}

func (s *Store) UpdateCachedInterpretation(ctx context.Context, update *UpdateCachedInterpretation) error {
	return s.driver.UpdateCachedInterpretation(ctx, update)
}

func (s *Store) DeleteCachedInterpretations(ctx context.Context, delete *DeleteCachedInterpretation) (int64, error) {
	return s.driver.DeleteCachedInterpretations(ctx, delete)
}

func (s *Store) GetCachedInterpretationStats(ctx context.Context, now time.Time) (*CachedInterpretationStats, error) {
	return s.driver.GetCachedInterpretationStats(ctx, now)
}

func (s *Store) UpsertCacheMetricsSnapshot(ctx context.Context, upsert *UpsertCacheMetricsSnapshot) (*CacheMetricsSnapshot, error) {
	return s.driver.UpsertCacheMetricsSnapshot(ctx, upsert)
}

func (s *Store) ListCacheMetricsSnapshots(ctx context.Context, find *FindCacheMetricsSnapshot) ([]*CacheMetricsSnapshot, error) {
	return s.driver.ListCacheMetricsSnapshots(ctx, find)
}

func (s *Store) DeleteCacheMetricsSnapshots(ctx context.Context, delete *DeleteCacheMetricsSnapshot) (int64, error) {
	return s.driver.DeleteCacheMetricsSnapshots(ctx, delete)
}
