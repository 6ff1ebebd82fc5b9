package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the exponential backoff retry loop (spec.md §5: base
// 0.5s, factor 2, cap 30s).
type RetryConfig struct {
	InitialInterval float64 // seconds
	Multiplier      float64
	MaxInterval     float64 // seconds
	MaxElapsedTime  float64 // seconds; 0 disables the elapsed-time ceiling
}

// DefaultRetryConfig matches spec.md §5's stated defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{InitialInterval: 0.5, Multiplier: 2, MaxInterval: 30}
}

// Retry runs fn with bounded exponential backoff, stopping on ctx
// cancellation or when maxAttempts is reached (0 means unbounded until
// MaxElapsedTime, which also defaults to unbounded when 0).
func Retry(ctx context.Context, cfg RetryConfig, maxAttempts int, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = secondsToDuration(cfg.InitialInterval)
	b.Multiplier = cfg.Multiplier
	b.MaxInterval = secondsToDuration(cfg.MaxInterval)
	b.MaxElapsedTime = secondsToDuration(cfg.MaxElapsedTime)

	var withCtx backoff.BackOff = backoff.WithContext(b, ctx)
	if maxAttempts > 0 {
		withCtx = backoff.WithMaxRetries(withCtx, uint64(maxAttempts-1))
	}
	return backoff.Retry(fn, withCtx)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
