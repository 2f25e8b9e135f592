package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory[int](15 * time.Minute)
	m.SetClock(func() time.Time { return now })

	m.Set("a", 7)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	now = now.Add(15 * time.Minute)
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	m.Set("b", 1)
	m.Clear()
	_, ok = m.Get("b")
	assert.False(t, ok)
}

type payload struct {
	Minutes int `json:"minutes"`
}

func TestRedisRoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewRedis[payload](rdb, "travel:", time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", payload{Minutes: 12}))
	assert.True(t, mr.Exists("travel:k"))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12, got.Minutes)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
