package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newsai/internal/batch"
)

func TestRun_KeepsInputOrderWithOneFailure(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}
	errBoom := errors.New("boom")

	outcomes := batch.Run(context.Background(), items, 5, func(_ context.Context, n int) (string, error) {
		// Later items finish first.
		time.Sleep(time.Duration(6-n) * 5 * time.Millisecond)
		if n == 3 {
			return "", errBoom
		}
		return fmt.Sprintf("item-%d", n), nil
	})

	require.Len(t, outcomes, 5)
	for i, o := range outcomes {
		assert.Equal(t, i, o.Index)
	}
	assert.False(t, outcomes[2].OK())
	require.ErrorIs(t, outcomes[2].Err, errBoom)

	ok, failed := batch.Partition(outcomes)
	assert.Equal(t, []string{"item-1", "item-2", "item-4", "item-5"}, ok)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Index)
}

func TestRun_RespectsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	items := make([]int, 20)

	batch.Run(context.Background(), items, 3, func(_ context.Context, _ int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestRun_CancelledContextSkipsTasks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	outcomes := batch.Run(ctx, []int{1, 2, 3}, 2, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	assert.Zero(t, calls.Load())
	for _, o := range outcomes {
		require.ErrorIs(t, o.Err, context.Canceled)
	}
}

func TestRun_Empty(t *testing.T) {
	t.Parallel()

	outcomes := batch.Run(context.Background(), nil, 4, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.Empty(t, outcomes)
}
