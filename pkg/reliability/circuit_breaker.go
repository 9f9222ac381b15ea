package reliability

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker refuses a call because too many
// recent attempts have failed.
var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreaker is a state machine to prevent repeated execution of a failing function.
type CircuitBreaker struct {
	failures     int
	maxFailures  int
	state        string // "closed", "open", "half-open"
	lastFailTime time.Time
	timeout      time.Duration
	mu           sync.Mutex
}

// NewCircuitBreaker creates a new CircuitBreaker.
func NewCircuitBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		state:       "closed",
	}
}

// Call executes the given function, applying the circuit breaker logic.
// A context cancellation does not count as a failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	if cb.state == "open" {
		if time.Since(cb.lastFailTime) > cb.timeout {
			cb.state = "half-open"
			cb.failures = 0
		} else {
			cb.mu.Unlock()
			return ErrOpen
		}
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		cb.failures++
		cb.lastFailTime = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = "open"
		}
		return err
	}

	cb.failures = 0
	cb.state = "closed"
	return nil
}
