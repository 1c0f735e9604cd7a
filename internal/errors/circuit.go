package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the breaker's position in its closed/open/half-open cycle.
type BreakerState int

const (
	// BreakerClosed lets every call through. Normal operation.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects every call until the cooldown elapses.
	BreakerOpen
	// BreakerProbing lets a single call through to test recovery.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops repeated calls to an external provider that keeps
// failing. The summarizer and embedding chain make best-effort network calls
// on the query path; once a provider has failed maxFailures times in a row the
// breaker opens and callers fail fast with ErrCircuitOpen instead of waiting
// out another timeout. After the cooldown a single probe call is admitted, and
// the breaker closes again only if it succeeds.
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures trip the breaker.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(b *CircuitBreaker) { b.maxFailures = n }
}

// WithCooldown sets how long the breaker stays open before probing.
func WithCooldown(d time.Duration) CircuitBreakerOption {
	return func(b *CircuitBreaker) { b.cooldown = d }
}

// NewCircuitBreaker creates a breaker named after the provider it guards.
// Defaults: 5 consecutive failures, 30 second cooldown.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	b := &CircuitBreaker{
		name:        name,
		maxFailures: 5,
		cooldown:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the guarded provider's name.
func (b *CircuitBreaker) Name() string { return b.name }

// State reports the current breaker state, accounting for cooldown expiry.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveState()
}

// Failures returns the consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// effectiveState folds cooldown expiry into the stored state.
// Caller must hold b.mu.
func (b *CircuitBreaker) effectiveState() BreakerState {
	if b.state == BreakerOpen && time.Since(b.openedAt) > b.cooldown {
		return BreakerProbing
	}
	return b.state
}

// Execute runs fn unless the breaker is open. A failure while probing
// reopens the breaker immediately; a success in any state closes it.
func (b *CircuitBreaker) Execute(fn func() error) error {
	b.mu.Lock()
	state := b.effectiveState()
	if state == BreakerOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.state = state
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordFailure(state)
		return err
	}
	b.state = BreakerClosed
	b.failures = 0
	return nil
}

// recordFailure updates failure bookkeeping after an unsuccessful call.
// Caller must hold b.mu.
func (b *CircuitBreaker) recordFailure(state BreakerState) {
	b.failures++
	if state == BreakerProbing || b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}
