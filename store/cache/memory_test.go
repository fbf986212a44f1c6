package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, config Config) *Cache {
	t.Helper()
	c := New(config)
	t.Cleanup(c.Close)
	return c
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: time.Minute})
	ctx := context.Background()

	c.Set(ctx, "key", "value")

	got, ok := c.Get(ctx, "key")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = c.Get(ctx, "absent")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryNotReturned(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: time.Minute})
	ctx := context.Background()

	c.SetWithTTL(ctx, "short", "value", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "short")
	assert.False(t, ok)
	// The expired entry is dropped on read.
	assert.Equal(t, 0, c.Size())
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: time.Minute, MaxItems: 3})
	ctx := context.Background()

	// "first" expires soonest and becomes the eviction victim.
	c.SetWithTTL(ctx, "first", 1, time.Second)
	for i := 0; i < 2; i++ {
		c.Set(ctx, fmt.Sprintf("key-%d", i), i)
	}
	c.Set(ctx, "overflow", 99)

	assert.Equal(t, 3, c.Size())
	_, ok := c.Get(ctx, "first")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "overflow")
	assert.True(t, ok)
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: time.Minute, MaxItems: 2})
	ctx := context.Background()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Set(ctx, "a", 3)

	assert.Equal(t, 2, c.Size())
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestCache_Delete(t *testing.T) {
	var evictedKey string
	c := newTestCache(t, Config{
		DefaultTTL: time.Minute,
		OnEviction: func(key string, _ any) { evictedKey = key },
	})
	ctx := context.Background()

	c.Set(ctx, "key", "value")
	c.Delete(ctx, "key")

	_, ok := c.Get(ctx, "key")
	assert.False(t, ok)
	assert.Equal(t, "key", evictedKey)
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("key-%d", i), i)
	}
	c.Clear(ctx)

	assert.Equal(t, 0, c.Size())
}

func TestCache_CleanupLoop(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: time.Minute, CleanupInterval: 5 * time.Millisecond})
	ctx := context.Background()

	c.SetWithTTL(ctx, "short", "value", time.Millisecond)

	require.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 5*time.Millisecond)
}
