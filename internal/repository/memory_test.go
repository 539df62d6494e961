package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRateLimiter(t *testing.T) {
	repo := NewMemoryRateLimiter()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := repo.CheckRateLimit(ctx, "guest:1.2.3.4", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "guest:1.2.3.4", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "guest:1.2.3.4", 2, time.Second)
		assert.False(t, allowed)

		allowed, _ = repo.CheckRateLimit(ctx, "guest:5.6.7.8", 2, time.Second)
		assert.True(t, allowed, "keys are independent")

		now = now.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, "guest:1.2.3.4", 2, time.Second)
		assert.True(t, allowed, "window expired")
	})

	t.Run("Sweep", func(t *testing.T) {
		now = now.Add(time.Minute)
		assert.Equal(t, 2, repo.Sweep())
		assert.Zero(t, repo.Sweep())
	})
}
