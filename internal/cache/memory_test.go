package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDel(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Del(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is not an error.
	assert.NoError(t, c.Del(ctx, "missing"))
}

func TestMemory_TTLExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(59 * time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.True(t, ok, "still inside TTL")

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "expired")
}

func TestMemory_Expire_ResetsTTL(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	now = now.Add(50 * time.Second)
	require.NoError(t, c.Expire(ctx, "k", time.Minute))

	now = now.Add(50 * time.Second) // 100s since set, 50s since refresh
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok, "refresh should have extended the TTL")

	// Expire on a missing key is a no-op.
	assert.NoError(t, c.Expire(ctx, "ghost", time.Minute))
}

func TestMemory_MGet_MixedPresence(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "c", "1", 0))

	got, err := c.MGet(ctx, "a", "b", "c")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].OK)
	assert.False(t, got[1].OK)
	assert.True(t, got[2].OK)
}
