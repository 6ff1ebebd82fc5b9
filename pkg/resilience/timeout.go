package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is the distinguished error surfaced by WithTimeout when fn
// does not return before the deadline (spec.md §5).
var ErrTimeout = errors.New("resilience: operation timed out")

// DefaultCheckTimeout matches spec.md §5's default for check runners.
const DefaultCheckTimeout = 300 * time.Second

// WithTimeout runs fn in the given timeout, returning ErrTimeout if it
// does not complete in time. fn continues running in the background
// after a timeout; the caller only stops waiting for it.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
