package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystica-ai/mystica/plugin/tarot/analytics"
	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/plugin/tarot/strategy"
	"github.com/mystica-ai/mystica/store"
	storetest "github.com/mystica-ai/mystica/store/test"
)

func newTestScheduler(t *testing.T) (*Scheduler, *storetest.FakeDriver) {
	t.Helper()
	st, driver := storetest.NewTestingStore()
	cacheService := cache.NewService(st, cache.DefaultServiceConfig())
	t.Cleanup(cacheService.Close)
	engine := strategy.NewEngine(cacheService)
	return New(cacheService, engine, analytics.NewService(engine, st), DefaultConfig()), driver
}

func seedRecord(t *testing.T, driver *storetest.FakeDriver, key string, hitCount int32, createdAt, expiresAt time.Time) {
	t.Helper()
	_, err := driver.CreateCachedInterpretation(context.Background(), &store.CachedInterpretation{
		UID:                "uid-" + key,
		CacheKey:           key,
		CardCombination:    []store.CardPlacement{{CardID: 1, Position: 0}},
		QuestionHash:       "qh",
		InterpretationText: "interpretation for " + key,
		HitCount:           hitCount,
		CreatedAt:          createdAt,
		LastUsedAt:         createdAt,
		ExpiresAt:          expiresAt,
	})
	require.NoError(t, err)
}

func TestScheduler_Sweep(t *testing.T) {
	sched, driver := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	// Expired record: removed regardless of usage.
	seedRecord(t, driver, "expired", 50, now.AddDate(0, 0, -40), now.Add(-time.Hour))
	// Old record with one hit: below the low-usage threshold.
	seedRecord(t, driver, "low-usage", 1, now.AddDate(0, 0, -10), now.Add(time.Hour))
	// Recent record with one hit: too young to evict.
	seedRecord(t, driver, "young", 1, now.Add(-time.Hour), now.Add(time.Hour))
	// Old record with healthy usage: kept.
	seedRecord(t, driver, "popular", 20, now.AddDate(0, 0, -10), now.Add(time.Hour))

	sched.Sweep(ctx)

	records, err := driver.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	keys := []string{records[0].CacheKey, records[1].CacheKey}
	assert.ElementsMatch(t, []string{"young", "popular"}, keys)
}

func TestScheduler_RefreshTTLs(t *testing.T) {
	sched, driver := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	// Popular record still carrying a short TTL gets promoted.
	seedRecord(t, driver, "promoted", 15, now.AddDate(0, 0, -1), now.AddDate(0, 0, 6))

	sched.RefreshTTLs(ctx)

	record, err := driver.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.ExpiresAt.After(now.AddDate(0, 0, 80)))
}

func TestScheduler_Snapshot(t *testing.T) {
	sched, driver := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	seedRecord(t, driver, "active", 5, now.AddDate(0, 0, -1), now.AddDate(0, 0, 30))
	require.NoError(t, driver.IncrementCachedInterpretationHit(ctx, 1, now))

	sched.Snapshot(ctx)

	snapshots, err := driver.ListCacheMetricsSnapshots(ctx, &store.FindCacheMetricsSnapshot{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.True(t, snapshots[0].HourBucket.Equal(now.Truncate(time.Hour)))
	assert.Positive(t, snapshots[0].CacheHits)
}

func TestScheduler_StartAndClose(t *testing.T) {
	sched, _ := newTestScheduler(t)

	sched.Start()
	done := make(chan struct{})
	go func() {
		sched.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not shut down")
	}
}
