package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystica-ai/mystica/store"
	storetest "github.com/mystica-ai/mystica/store/test"
)

func int32Ptr(v int32) *int32 { return &v }

func newTestService(t *testing.T) (*Service, *storetest.FakeDriver) {
	t.Helper()
	st, driver := storetest.NewTestingStore()
	svc := NewService(st, DefaultServiceConfig())
	t.Cleanup(svc.Close)
	return svc, driver
}

func seedRecord(t *testing.T, driver *storetest.FakeDriver, key string, tarotistaID *int32, cards []store.CardPlacement, expiresAt time.Time) *store.CachedInterpretation {
	t.Helper()
	record, err := driver.CreateCachedInterpretation(context.Background(), &store.CachedInterpretation{
		UID:                "uid-" + key,
		CacheKey:           key,
		TarotistaID:        tarotistaID,
		CardCombination:    cards,
		QuestionHash:       "qh",
		InterpretationText: "interpretation for " + key,
		CreatedAt:          time.Now().Add(-time.Hour),
		LastUsedAt:         time.Now().Add(-time.Hour),
		ExpiresAt:          expiresAt,
	})
	require.NoError(t, err)
	return record
}

func TestService_GetMiss(t *testing.T) {
	svc, _ := newTestService(t)

	record, err := svc.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestService_GetReadThrough(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	svc.clock = func() time.Time { return now }
	seeded := seedRecord(t, driver, "k1", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}}, now.Add(24*time.Hour))

	record, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "interpretation for k1", record.InterpretationText)
	assert.Equal(t, int32(1), record.HitCount)
	assert.Equal(t, now, record.LastUsedAt)

	// The durable record was incremented through the atomic store operation.
	stored, err := driver.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{ID: &seeded.ID})
	require.NoError(t, err)
	assert.Equal(t, int32(1), stored.HitCount)
}

func TestService_GetFastPath(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	err := svc.Put(ctx, &PutRequest{
		CacheKey:        "k1",
		TarotistaID:     int32Ptr(7),
		CardCombination: []store.CardPlacement{{CardID: 1, Position: 0}, {CardID: 2, Position: 1, Reversed: true}},
		QuestionHash:    "h1",
		Text:            "the cards speak",
	})
	require.NoError(t, err)

	// Served from the in-process tier; the durable record is untouched.
	record, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "the cards speak", record.InterpretationText)

	key := "k1"
	stored, err := driver.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{CacheKey: &key})
	require.NoError(t, err)
	assert.Equal(t, int32(0), stored.HitCount)
}

func TestService_ExpiredNeverReturned(t *testing.T) {
	t.Run("ExpiredInStore", func(t *testing.T) {
		svc, driver := newTestService(t)
		ctx := context.Background()
		seeded := seedRecord(t, driver, "dead", nil, nil, time.Now().Add(-time.Minute))

		record, err := svc.Get(ctx, "dead")
		require.NoError(t, err)
		assert.Nil(t, record)

		// No hit bookkeeping for dead records.
		stored, err := driver.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{ID: &seeded.ID})
		require.NoError(t, err)
		assert.Equal(t, int32(0), stored.HitCount)
	})

	t.Run("ExpiredInFastTier", func(t *testing.T) {
		svc, _ := newTestService(t)
		ctx := context.Background()

		// Negative TTL forces expiresAt into the past at creation; the fast
		// tier copy must not be trusted either.
		err := svc.Put(ctx, &PutRequest{CacheKey: "dead", QuestionHash: "h", Text: "stale", TTLDays: -1})
		require.NoError(t, err)

		record, err := svc.Get(ctx, "dead")
		require.NoError(t, err)
		assert.Nil(t, record)
	})
}

func TestService_PutConflictIsIdempotent(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	req := &PutRequest{CacheKey: "k1", QuestionHash: "h1", Text: "first"}
	require.NoError(t, svc.Put(ctx, req))

	// Concurrent put of the same key resolves to the existing record.
	require.NoError(t, svc.Put(ctx, &PutRequest{CacheKey: "k1", QuestionHash: "h1", Text: "second"}))

	count, err := driver.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	record, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "first", record.InterpretationText)
}

func TestService_PutAppliesDefaultTTL(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	svc.clock = func() time.Time { return now }
	require.NoError(t, svc.Put(ctx, &PutRequest{CacheKey: "k1", QuestionHash: "h", Text: "t"}))

	key := "k1"
	record, err := driver.GetCachedInterpretation(ctx, &store.FindCachedInterpretation{CacheKey: &key})
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultTTLDays*24*time.Hour), record.ExpiresAt)
	assert.Equal(t, int32(0), record.HitCount)
}

func TestService_InvalidateByTarotista(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	live := time.Now().Add(24 * time.Hour)
	seedRecord(t, driver, "a", int32Ptr(7), nil, live)
	seedRecord(t, driver, "b", int32Ptr(7), nil, live)
	seedRecord(t, driver, "c", int32Ptr(8), nil, live)

	deleted, err := svc.InvalidateByTarotista(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := driver.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	metrics := svc.InvalidationMetrics()
	assert.Equal(t, int64(1), metrics.Total)
	assert.Equal(t, int64(1), metrics.ByTarotista)
	assert.Equal(t, int64(0), metrics.ByMeanings)
}

func TestService_InvalidateSelective(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	live := time.Now().Add(24 * time.Hour)
	seedRecord(t, driver, "a", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}}, live)
	seedRecord(t, driver, "b", int32Ptr(7), []store.CardPlacement{{CardID: 2, Position: 0}}, live)
	keep := seedRecord(t, driver, "c", int32Ptr(7), []store.CardPlacement{{CardID: 3, Position: 0}}, live)

	deleted, err := svc.InvalidateSelective(ctx, 7, []int32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := driver.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{TarotistaID: int32Ptr(7)})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)

	// Second delivery of the same invalidation is a no-op.
	deleted, err = svc.InvalidateSelective(ctx, 7, []int32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	metrics := svc.InvalidationMetrics()
	assert.Equal(t, int64(1), metrics.ByMeanings)
	assert.Equal(t, int64(1), metrics.Total)
}

func TestService_InvalidateCascade(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	seedRecord(t, driver, "a", int32Ptr(7), nil, time.Now().Add(24*time.Hour))

	deleted, err := svc.InvalidateCascade(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestService_ClearAll(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, &PutRequest{CacheKey: "k1", QuestionHash: "h", Text: "t"}))
	require.NoError(t, svc.ClearAll(ctx))

	count, err := driver.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	record, err := svc.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestService_SweepExpired(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	seedRecord(t, driver, "dead", nil, nil, now.Add(-time.Minute))
	seedRecord(t, driver, "live", nil, nil, now.Add(time.Hour))

	deleted, err := svc.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := driver.CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestService_SweepLowUsage(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	old := seedRecord(t, driver, "old-unused", nil, nil, time.Now().Add(time.Hour))
	popular := seedRecord(t, driver, "old-popular", nil, nil, time.Now().Add(time.Hour))
	require.NoError(t, driver.IncrementCachedInterpretationHit(ctx, popular.ID, time.Now()))
	require.NoError(t, driver.IncrementCachedInterpretationHit(ctx, popular.ID, time.Now()))

	// Records were seeded one hour ago; sweep anything older than 0 days
	// with fewer than 2 hits.
	deleted, err := svc.SweepLowUsage(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := driver.ListCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.NotEqual(t, old.ID, remaining[0].ID)
}

func TestService_StatsIdempotent(t *testing.T) {
	svc, driver := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	svc.clock = func() time.Time { return now }
	seedRecord(t, driver, "a", nil, nil, now.Add(time.Hour))
	seedRecord(t, driver, "b", nil, nil, now.Add(-time.Hour))

	first, err := svc.Stats(ctx)
	require.NoError(t, err)
	second, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), first.Total)
	assert.Equal(t, int64(1), first.Expired)
}

func TestService_StorageErrorPropagates(t *testing.T) {
	svc, driver := newTestService(t)
	driver.Err = errors.New("connection refused")

	_, err := svc.Get(context.Background(), "k1")
	require.Error(t, err)

	err = svc.Put(context.Background(), &PutRequest{CacheKey: "k1", QuestionHash: "h", Text: "t"})
	require.Error(t, err)
}
