package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsai/internal/logger"
)

func TestAcquire_Unlimited(t *testing.T) {
	rl := NewRequestLimiter("gemini", 0, 0, logger.Discard())

	for range 100 {
		require.NoError(t, rl.Acquire(context.Background()))
	}
	assert.Equal(t, 100, rl.GetStats()["used"])
}

func TestAcquire_BudgetExhausted(t *testing.T) {
	rl := NewRequestLimiter("openai", 0, 2, logger.Discard())

	require.NoError(t, rl.Acquire(context.Background()))
	require.NoError(t, rl.Acquire(context.Background()))

	err := rl.Acquire(context.Background())
	require.ErrorIs(t, err, ErrBudgetExhausted)

	stats := rl.GetStats()
	assert.Equal(t, 2, stats["used"])
	assert.Equal(t, 1, stats["denied"])
}

func TestAcquire_QuotaHonoursContext(t *testing.T) {
	// One request per minute: the first passes, the second must wait.
	rl := NewRequestLimiter("gemini", 1, 0, logger.Discard())
	require.NoError(t, rl.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.Error(t, rl.Acquire(ctx))
}
