package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	lim := NewInMemory(time.Minute)
	lim.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		d := lim.Allow(ctx, "k", 3)
		require.True(t, d.Allowed, "request %d should pass", i)
		require.Equal(t, 3-i, d.Remaining)
	}
	d := lim.Allow(ctx, "k", 3)
	require.False(t, d.Allowed)
	require.Equal(t, 0, d.Remaining)
	require.Equal(t, 60, d.RetryAfter(now))

	require.True(t, lim.Allow(ctx, "other", 3).Allowed, "keys are independent")

	now = now.Add(time.Minute)
	require.True(t, lim.Allow(ctx, "k", 3).Allowed, "window resets")
}

func TestInMemoryLimiterClampsLimit(t *testing.T) {
	lim := NewInMemory(0)
	require.Equal(t, time.Minute, lim.window)
	require.True(t, lim.Allow(context.Background(), "k", 0).Allowed)
	require.False(t, lim.Allow(context.Background(), "k", 0).Allowed)
}

func TestRedisLimiter(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lim := NewRedis(client, time.Minute)
	ctx := context.Background()
	require.True(t, lim.Allow(ctx, "login:1.2.3.4", 2).Allowed)
	require.True(t, lim.Allow(ctx, "login:1.2.3.4", 2).Allowed)
	d := lim.Allow(ctx, "login:1.2.3.4", 2)
	require.False(t, d.Allowed)
	require.Equal(t, 3, d.Count)
	require.True(t, mr.Exists("rl:login:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)
	require.True(t, lim.Allow(ctx, "login:1.2.3.4", 2).Allowed)
}

func TestRedisLimiterFallsBackWhenUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	lim := NewRedis(client, time.Minute)
	ctx := context.Background()
	require.True(t, lim.Allow(ctx, "k", 1).Allowed)
	require.False(t, lim.Allow(ctx, "k", 1).Allowed, "fallback still enforces the limit")
}

func TestNewPicksImplementation(t *testing.T) {
	_, ok := New(nil, time.Minute).(*InMemoryLimiter)
	require.True(t, ok)
	_, ok = New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), time.Minute).(*RedisLimiter)
	require.True(t, ok)
}
