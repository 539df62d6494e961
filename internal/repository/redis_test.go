package repository

import (
	"context"
	"testing"
	"time"

	"realtyhub/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisRateLimiter(client)
	ctx := context.Background()

	require.NoError(t, Ping(ctx, client))

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "guest:1.2.3.4", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, "guest:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		ttl := s.TTL(rateLimitPrefix + "guest:1.2.3.4")
		assert.Equal(t, time.Minute, ttl)

		s.FastForward(time.Minute + time.Second)
		allowed, err = repo.CheckRateLimit(ctx, "guest:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := NewRedisRateLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}))
		_, err := down.CheckRateLimit(ctx, "k", 1, time.Minute)
		assert.Error(t, err)
	})

	t.Run("NilClient", func(t *testing.T) {
		_, err := NewRedisRateLimiter(nil).CheckRateLimit(ctx, "k", 1, time.Minute)
		assert.Error(t, err)
	})
}
