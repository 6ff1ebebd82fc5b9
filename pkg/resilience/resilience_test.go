package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := New(BreakerConfig{Name: "t", FailureThreshold: 2, RecoveryTimeout: time.Hour, SuccessThreshold: 1})
	ctx := context.Background()
	failing := func(context.Context) error { return errors.New("boom") }

	_ = cb.Execute(ctx, failing)
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(ctx, failing)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestCircuitBreakerHalfOpenRecovers(t *testing.T) {
	cb := New(BreakerConfig{Name: "t", FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenReopensOnFailure(t *testing.T) {
	cb := New(BreakerConfig{Name: "t", FailureThreshold: 1, RecoveryTimeout: time.Millisecond, SuccessThreshold: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("still broken") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{InitialInterval: 0.001, Multiplier: 2, MaxInterval: 0.01}, 5, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{InitialInterval: 0.001, Multiplier: 2, MaxInterval: 0.01}, 2, func() error {
		attempts++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithTimeoutReturnsErrTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWithTimeoutReturnsUnderlyingError(t *testing.T) {
	boom := errors.New("boom")
	err := WithTimeout(context.Background(), time.Second, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
