// Package resilience implements the bounded-retry, circuit-breaker, and
// timeout wrappers spec.md §5 requires around long-running external
// calls (SCM subprocesses, check runners).
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states (spec.md §5).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrOpen is returned when Execute is rejected because the breaker is open.
var ErrOpen = errors.New("resilience: circuit breaker is open")

// BreakerConfig configures a CircuitBreaker (spec.md §5).
type BreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures before CLOSED->OPEN
	RecoveryTimeout  time.Duration // OPEN->HALF_OPEN after this elapses
	SuccessThreshold int           // consecutive half-open successes before HALF_OPEN->CLOSED
}

// DefaultBreakerConfig matches spec.md §5's suggested defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitBreaker is a three-state breaker: CLOSED allows all calls; OPEN
// rejects all calls until RecoveryTimeout elapses; HALF_OPEN allows calls
// through to probe recovery (spec.md §5).
type CircuitBreaker struct {
	cfg BreakerConfig

	mu               sync.Mutex
	state            State
	consecutiveFails int
	consecutiveOK    int
	openedAt         time.Time
}

// New returns a CircuitBreaker in the closed state.
func New(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultBreakerConfig(cfg.Name)
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// State reports the current state, transitioning OPEN->HALF_OPEN first
// if RecoveryTimeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeRecoverLocked()
	return cb.state
}

func (cb *CircuitBreaker) maybeRecoverLocked() {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.RecoveryTimeout {
		cb.state = StateHalfOpen
		cb.consecutiveOK = 0
	}
}

// Execute runs fn under breaker protection, rejecting immediately with
// ErrOpen when the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	cb.maybeRecoverLocked()
	if cb.state == StateOpen {
		cb.mu.Unlock()
		return ErrOpen
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.consecutiveOK = 0
		cb.consecutiveFails++
		if cb.state == StateHalfOpen {
			cb.openLocked()
		} else if cb.cfg.FailureThreshold > 0 && cb.consecutiveFails >= cb.cfg.FailureThreshold {
			cb.openLocked()
		}
		return err
	}

	cb.consecutiveFails = 0
	if cb.state == StateHalfOpen {
		cb.consecutiveOK++
		if cb.consecutiveOK >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.consecutiveOK = 0
		}
	}
	return nil
}

func (cb *CircuitBreaker) openLocked() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.consecutiveFails = 0
}

// Reset forces the breaker back to closed, clearing counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.consecutiveFails = 0
	cb.consecutiveOK = 0
}
