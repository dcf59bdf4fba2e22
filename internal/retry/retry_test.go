package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientFailureThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_StopsImmediatelyOnPermanentError(t *testing.T) {
	calls := 0
	sentinel := errors.New("device not bound")
	err := Do(context.Background(), Policy{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return MarkPermanent(sentinel)
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	calls := 0
	lastErr := errors.New("still failing")
	err := Do(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return lastErr
	})
	require.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond}, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
