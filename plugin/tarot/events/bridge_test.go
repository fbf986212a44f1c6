package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/store"
	storetest "github.com/mystica-ai/mystica/store/test"
)

func int32Ptr(v int32) *int32 { return &v }

func newTestBridge(t *testing.T) (*Bridge, *cache.Service, *storetest.FakeDriver) {
	t.Helper()
	st, driver := storetest.NewTestingStore()
	cacheService := cache.NewService(st, cache.DefaultServiceConfig())
	t.Cleanup(cacheService.Close)
	return NewBridge(cacheService), cacheService, driver
}

func seedRecord(t *testing.T, driver *storetest.FakeDriver, key string, tarotistaID *int32, cards []store.CardPlacement) {
	t.Helper()
	_, err := driver.CreateCachedInterpretation(context.Background(), &store.CachedInterpretation{
		UID:                "uid-" + key,
		CacheKey:           key,
		TarotistaID:        tarotistaID,
		CardCombination:    cards,
		QuestionHash:       "qh",
		InterpretationText: "interpretation for " + key,
		CreatedAt:          time.Now(),
		LastUsedAt:         time.Now(),
		ExpiresAt:          time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestBridge_TarotistaConfigUpdated(t *testing.T) {
	bridge, cacheService, driver := newTestBridge(t)
	ctx := context.Background()

	seedRecord(t, driver, "t7-a", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}})
	seedRecord(t, driver, "t7-b", int32Ptr(7), []store.CardPlacement{{CardID: 2, Position: 0}})
	seedRecord(t, driver, "t9", int32Ptr(9), []store.CardPlacement{{CardID: 3, Position: 0}})

	require.NoError(t, bridge.HandleTarotistaConfigUpdated(ctx, &TarotistaConfigUpdated{
		TarotistaID:    7,
		PreviousConfig: json.RawMessage(`{"tone":"mystical"}`),
		NewConfig:      json.RawMessage(`{"tone":"direct"}`),
	}))

	remaining, err := cacheService.Store().CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestBridge_CardMeaningUpdated(t *testing.T) {
	bridge, cacheService, driver := newTestBridge(t)
	ctx := context.Background()

	seedRecord(t, driver, "affected", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}, {CardID: 4, Position: 1}})
	seedRecord(t, driver, "untouched", int32Ptr(7), []store.CardPlacement{{CardID: 2, Position: 0}})

	require.NoError(t, bridge.HandleCardMeaningUpdated(ctx, &CardMeaningUpdated{
		TarotistaID:     7,
		CardIDs:         []int32{4},
		PreviousMeaning: "la torre anuncia ruina",
		NewMeaning:      "la torre anuncia cambio subito",
	}))

	records, err := cacheService.Store().ListCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "untouched", records[0].CacheKey)
}

func TestBridge_RedeliveryIsIdempotent(t *testing.T) {
	bridge, _, driver := newTestBridge(t)
	ctx := context.Background()

	seedRecord(t, driver, "t7", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}})

	config := &TarotistaConfigUpdated{TarotistaID: 7}
	require.NoError(t, bridge.HandleTarotistaConfigUpdated(ctx, config))
	require.NoError(t, bridge.HandleTarotistaConfigUpdated(ctx, config))

	meaning := &CardMeaningUpdated{TarotistaID: 7, CardIDs: []int32{1}}
	require.NoError(t, bridge.HandleCardMeaningUpdated(ctx, meaning))
	require.NoError(t, bridge.HandleCardMeaningUpdated(ctx, meaning))
}

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	bridge, cacheService, driver := newTestBridge(t)
	ctx := context.Background()

	seedRecord(t, driver, "t7", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}})

	dispatcher := NewDispatcher()
	dispatcher.Subscribe(bridge)
	dispatcher.PublishTarotistaConfigUpdated(ctx, &TarotistaConfigUpdated{TarotistaID: 7})

	remaining, err := cacheService.Store().CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestDispatcher_HandlerErrorDoesNotBlockOthers(t *testing.T) {
	bridge, cacheService, driver := newTestBridge(t)
	ctx := context.Background()

	seedRecord(t, driver, "t7", int32Ptr(7), []store.CardPlacement{{CardID: 1, Position: 0}})

	failing, _, failingDriver := newTestBridge(t)
	failingDriver.Err = assert.AnError

	dispatcher := NewDispatcher()
	dispatcher.Subscribe(failing)
	dispatcher.Subscribe(bridge)
	dispatcher.PublishCardMeaningUpdated(ctx, &CardMeaningUpdated{TarotistaID: 7, CardIDs: []int32{1}})

	remaining, err := cacheService.Store().CountCachedInterpretations(ctx, &store.FindCachedInterpretation{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}
