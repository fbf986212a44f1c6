// Package test provides an in-memory store.Driver used by service tests.
package test

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/mystica-ai/mystica/internal/profile"
	"github.com/mystica-ai/mystica/store"
)

// FakeDriver is an in-memory implementation of store.Driver.
// It mirrors the semantics the SQL drivers provide: unique cache keys,
// atomic hit increments, filtered deletes.
type FakeDriver struct {
	mu sync.Mutex

	nextID         int32
	records        map[int32]*store.CachedInterpretation
	nextSnapshotID int64
	snapshots      map[int64]*store.CacheMetricsSnapshot

	// Err, when set, is returned by every operation. Used to exercise
	// storage failure paths.
	Err error
}

// NewFakeDriver creates an empty in-memory driver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		records:   make(map[int32]*store.CachedInterpretation),
		snapshots: make(map[int64]*store.CacheMetricsSnapshot),
	}
}

// NewTestingStore wraps a fresh FakeDriver in a store.Store.
func NewTestingStore() (*store.Store, *FakeDriver) {
	driver := NewFakeDriver()
	return store.New(driver, &profile.Profile{Mode: "dev", Driver: "fake"}), driver
}

func (d *FakeDriver) GetDB() *sql.DB { return nil }

func (d *FakeDriver) Close() error { return nil }

func (d *FakeDriver) IsInitialized(_ context.Context) (bool, error) { return true, nil }

func (d *FakeDriver) CreateCachedInterpretation(_ context.Context, create *store.CachedInterpretation) (*store.CachedInterpretation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}

	for _, record := range d.records {
		if record.CacheKey == create.CacheKey || record.UID == create.UID {
			return nil, store.ErrConflict
		}
	}

	d.nextID++
	clone := *create
	clone.ID = d.nextID
	clone.CardCombination = append([]store.CardPlacement(nil), create.CardCombination...)
	d.records[clone.ID] = &clone

	result := clone
	return &result, nil
}

func (d *FakeDriver) GetCachedInterpretation(ctx context.Context, find *store.FindCachedInterpretation) (*store.CachedInterpretation, error) {
	list, err := d.ListCachedInterpretations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *FakeDriver) ListCachedInterpretations(_ context.Context, find *store.FindCachedInterpretation) ([]*store.CachedInterpretation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}

	var list []*store.CachedInterpretation
	for _, record := range d.records {
		if matches(record, find) {
			clone := *record
			clone.CardCombination = append([]store.CardPlacement(nil), record.CardCombination...)
			list = append(list, &clone)
		}
	}

	if find.OrderByHitCount {
		sort.Slice(list, func(i, j int) bool {
			if list[i].HitCount != list[j].HitCount {
				return list[i].HitCount > list[j].HitCount
			}
			return list[i].ID < list[j].ID
		})
	} else {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *FakeDriver) CountCachedInterpretations(ctx context.Context, find *store.FindCachedInterpretation) (int64, error) {
	list, err := d.ListCachedInterpretations(ctx, find)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (d *FakeDriver) IncrementCachedInterpretationHit(_ context.Context, id int32, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}

	if record, ok := d.records[id]; ok {
		record.HitCount++
		record.LastUsedAt = now
	}
	return nil
}

func (d *FakeDriver) UpdateCachedInterpretation(_ context.Context, update *store.UpdateCachedInterpretation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}

	record, ok := d.records[update.ID]
	if !ok {
		return store.ErrNotFound
	}
	if update.ExpiresAt != nil {
		record.ExpiresAt = *update.ExpiresAt
	}
	return nil
}

func (d *FakeDriver) DeleteCachedInterpretations(_ context.Context, delete *store.DeleteCachedInterpretation) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return 0, d.Err
	}

	var deleted int64
	for id, record := range d.records {
		remove := false
		switch {
		case delete.All:
			remove = true
		case len(delete.IDs) > 0:
			for _, target := range delete.IDs {
				if id == target {
					remove = true
					break
				}
			}
		case delete.TarotistaID != nil:
			remove = record.TarotistaID != nil && *record.TarotistaID == *delete.TarotistaID
		case delete.ExpiredBefore != nil:
			remove = !record.ExpiresAt.After(*delete.ExpiredBefore)
		case delete.LowUsage != nil:
			remove = record.HitCount < delete.LowUsage.MaxHits && record.CreatedAt.Before(delete.LowUsage.Before)
		}
		if remove {
			d.deleteLocked(id)
			deleted++
		}
	}
	return deleted, nil
}

func (d *FakeDriver) deleteLocked(id int32) {
	delete(d.records, id)
}

func (d *FakeDriver) GetCachedInterpretationStats(_ context.Context, now time.Time) (*store.CachedInterpretationStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}

	stats := &store.CachedInterpretationStats{}
	var hitSum int64
	for _, record := range d.records {
		stats.Total++
		hitSum += int64(record.HitCount)
		if !record.ExpiresAt.After(now) {
			stats.Expired++
		}
	}
	if stats.Total > 0 {
		stats.AvgHits = float64(hitSum) / float64(stats.Total)
	}
	return stats, nil
}

func (d *FakeDriver) UpsertCacheMetricsSnapshot(_ context.Context, upsert *store.UpsertCacheMetricsSnapshot) (*store.CacheMetricsSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}

	for _, snapshot := range d.snapshots {
		if snapshot.HourBucket.Equal(upsert.HourBucket) {
			snapshot.TotalRequests = upsert.TotalRequests
			snapshot.CacheHits = upsert.CacheHits
			snapshot.CacheMisses = upsert.CacheMisses
			snapshot.HitRatePercentage = upsert.HitRatePercentage
			snapshot.AvgCacheResponseTimeMs = upsert.AvgCacheResponseTimeMs
			snapshot.AvgAiResponseTimeMs = upsert.AvgAiResponseTimeMs
			clone := *snapshot
			return &clone, nil
		}
	}

	d.nextSnapshotID++
	snapshot := &store.CacheMetricsSnapshot{
		ID:                     d.nextSnapshotID,
		HourBucket:             upsert.HourBucket,
		TotalRequests:          upsert.TotalRequests,
		CacheHits:              upsert.CacheHits,
		CacheMisses:            upsert.CacheMisses,
		HitRatePercentage:      upsert.HitRatePercentage,
		AvgCacheResponseTimeMs: upsert.AvgCacheResponseTimeMs,
		AvgAiResponseTimeMs:    upsert.AvgAiResponseTimeMs,
	}
	d.snapshots[snapshot.ID] = snapshot
	clone := *snapshot
	return &clone, nil
}

func (d *FakeDriver) ListCacheMetricsSnapshots(_ context.Context, find *store.FindCacheMetricsSnapshot) ([]*store.CacheMetricsSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}

	var list []*store.CacheMetricsSnapshot
	for _, snapshot := range d.snapshots {
		if find.StartTime != nil && snapshot.HourBucket.Before(*find.StartTime) {
			continue
		}
		if find.EndTime != nil && snapshot.HourBucket.After(*find.EndTime) {
			continue
		}
		clone := *snapshot
		list = append(list, &clone)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].HourBucket.After(list[j].HourBucket) })
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *FakeDriver) DeleteCacheMetricsSnapshots(_ context.Context, del *store.DeleteCacheMetricsSnapshot) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return 0, d.Err
	}
	if del.BeforeTime == nil {
		return 0, nil
	}

	var deleted int64
	for id, snapshot := range d.snapshots {
		if snapshot.HourBucket.Before(*del.BeforeTime) {
			delete(d.snapshots, id)
			deleted++
		}
	}
	return deleted, nil
}

func matches(record *store.CachedInterpretation, find *store.FindCachedInterpretation) bool {
	if find.ID != nil && record.ID != *find.ID {
		return false
	}
	if find.CacheKey != nil && record.CacheKey != *find.CacheKey {
		return false
	}
	if find.TarotistaID != nil && (record.TarotistaID == nil || *record.TarotistaID != *find.TarotistaID) {
		return false
	}
	if find.SpreadID != nil && (record.SpreadID == nil || *record.SpreadID != *find.SpreadID) {
		return false
	}
	if find.SpreadID == nil && find.NoSpread && record.SpreadID != nil {
		return false
	}
	if find.ExcludeExpiredAt != nil && !record.ExpiresAt.After(*find.ExcludeExpiredAt) {
		return false
	}
	if find.CreatedAfter != nil && record.CreatedAt.Before(*find.CreatedAfter) {
		return false
	}
	if find.CreatedBefore != nil && !record.CreatedAt.Before(*find.CreatedBefore) {
		return false
	}
	if find.LastUsedAfter != nil && record.LastUsedAt.Before(*find.LastUsedAfter) {
		return false
	}
	if find.LastUsedBefore != nil && !record.LastUsedAt.Before(*find.LastUsedBefore) {
		return false
	}
	if find.MaxHitCount != nil && record.HitCount > *find.MaxHitCount {
		return false
	}
	return true
}

var _ store.Driver = (*FakeDriver)(nil)
