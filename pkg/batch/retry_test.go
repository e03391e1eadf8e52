package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_ExhaustsBudget(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3} {
		calls := 0
		_, attempts, err := Do(context.Background(), Retry{MaxRetries: maxRetries, Delay: time.Millisecond}, "item",
			func(context.Context) (string, error) {
				calls++
				return "", errors.New("remote down")
			})
		require.Error(t, err)
		assert.Equal(t, "remote down", err.Error())
		assert.Equal(t, maxRetries+1, calls)
		assert.Equal(t, maxRetries+1, attempts)
	}
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	res, attempts, err := Do(context.Background(), Retry{MaxRetries: 3, Delay: time.Millisecond}, "item",
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("flaky")
			}
			return 42, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, attempts)
}

func TestDo_FixedDelay(t *testing.T) {
	start := time.Now()
	_, attempts, err := Do(context.Background(), Retry{MaxRetries: 2, Delay: 30 * time.Millisecond}, "item",
		func(context.Context) (int, error) { return 0, errors.New("fail") })
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	// two delays between three attempts, none after the last one
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, attempts, err := Do(ctx, Retry{MaxRetries: 5, Delay: time.Second}, "item",
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("fail")
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry interrupted after 1 attempts")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestRetry_Attempts(t *testing.T) {
	assert.Equal(t, 1, Retry{}.Attempts())
	assert.Equal(t, 4, Retry{MaxRetries: 3}.Attempts())
	assert.Equal(t, 1, Retry{MaxRetries: -2}.Attempts())
}

func TestDo_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, attempts, err := Do(ctx, Retry{MaxRetries: 2, Delay: time.Millisecond}, "item",
		func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
	assert.Zero(t, attempts)
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), time.Millisecond))
	require.NoError(t, Wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.ErrorIs(t, Wait(ctx, time.Second), context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}
