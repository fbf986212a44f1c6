// Package events connects external catalog changes to cache invalidation.
// Upstream services publish events when a tarotista's configuration or a
// card's meaning text changes; the bridge translates those events into the
// matching invalidation calls so stale interpretations never outlive the
// content they were generated from.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mystica-ai/mystica/plugin/tarot/cache"
)

// TarotistaConfigUpdated signals that a tarotista changed their reading
// style, persona, or prompt configuration. The before/after payloads travel
// with the event for audit consumers; invalidation does not depend on the
// diff, because any config change taints the whole scope.
type TarotistaConfigUpdated struct {
	TarotistaID    int32           `json:"tarotistaId"`
	PreviousConfig json.RawMessage `json:"previousConfig,omitempty"`
	NewConfig      json.RawMessage `json:"newConfig,omitempty"`
}

// CardMeaningUpdated signals that the meaning text of one or more cards
// changed for a tarotista.
type CardMeaningUpdated struct {
	TarotistaID     int32   `json:"tarotistaId"`
	CardIDs         []int32 `json:"cardIds"`
	PreviousMeaning string  `json:"previousMeaning,omitempty"`
	NewMeaning      string  `json:"newMeaning,omitempty"`
}

// Handler receives catalog change events.
type Handler interface {
	HandleTarotistaConfigUpdated(ctx context.Context, event *TarotistaConfigUpdated) error
	HandleCardMeaningUpdated(ctx context.Context, event *CardMeaningUpdated) error
}

// Bridge forwards catalog change events to the cache service.
// Both handlers are idempotent: re-delivering an event after its records are
// already gone invalidates nothing and is not an error.
type Bridge struct {
	cache *cache.Service
}

// NewBridge creates an event bridge over the cache service.
func NewBridge(cacheService *cache.Service) *Bridge {
	return &Bridge{cache: cacheService}
}

// HandleTarotistaConfigUpdated drops every cached interpretation belonging
// to the tarotista. Their persona shapes all of their interpretations, so a
// config change invalidates the whole scope.
func (b *Bridge) HandleTarotistaConfigUpdated(ctx context.Context, event *TarotistaConfigUpdated) error {
	deleted, err := b.cache.InvalidateByTarotista(ctx, event.TarotistaID)
	if err != nil {
		return err
	}
	slog.Info("handled tarotista config update",
		"tarotista_id", event.TarotistaID,
		"invalidated", deleted,
	)
	return nil
}

// HandleCardMeaningUpdated drops cached interpretations in the tarotista's
// scope whose combination contains any of the changed cards. Entries for
// unrelated combinations survive.
func (b *Bridge) HandleCardMeaningUpdated(ctx context.Context, event *CardMeaningUpdated) error {
	deleted, err := b.cache.InvalidateSelective(ctx, event.TarotistaID, event.CardIDs)
	if err != nil {
		return err
	}
	slog.Info("handled card meaning update",
		"tarotista_id", event.TarotistaID,
		"card_ids", event.CardIDs,
		"invalidated", deleted,
	)
	return nil
}

var _ Handler = (*Bridge)(nil)

// Dispatcher is an in-process pub/sub hub for catalog change events. It is
// the integration point for services that mutate tarotista configuration or
// card meanings: they publish, subscribed handlers invalidate.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a handler for all subsequent events.
func (d *Dispatcher) Subscribe(handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// PublishTarotistaConfigUpdated delivers the event to every subscriber.
// Handler failures are logged and do not block delivery to the rest.
func (d *Dispatcher) PublishTarotistaConfigUpdated(ctx context.Context, event *TarotistaConfigUpdated) {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.HandleTarotistaConfigUpdated(ctx, event); err != nil {
			slog.Error("failed to handle tarotista config update", "tarotista_id", event.TarotistaID, "error", err)
		}
	}
}

// PublishCardMeaningUpdated delivers the event to every subscriber.
func (d *Dispatcher) PublishCardMeaningUpdated(ctx context.Context, event *CardMeaningUpdated) {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.HandleCardMeaningUpdated(ctx, event); err != nil {
			slog.Error("failed to handle card meaning update", "card_ids", event.CardIDs, "error", err)
		}
	}
}
