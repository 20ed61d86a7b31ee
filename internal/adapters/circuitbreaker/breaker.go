// Package circuitbreaker guards outbound calls to the embedding
// endpoint: once it has failed enough times in a row, further calls are
// rejected immediately instead of piling up behind a slow or dead
// service, giving the endpoint time to recover before traffic resumes.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is open,
// instead of attempting the call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String renders the breaker's state for logging.
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

// CircuitBreaker trips to StateOpen after maxFailures consecutive
// failures and stays there for timeout before probing the downstream
// service again via StateHalfOpen.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	maxFailures int
	timeout     time.Duration
	halfOpenMax int
}

// New creates a breaker that opens after maxFailures consecutive
// failures and attempts to close again, via a half-open probe phase,
// after timeout has elapsed.
func New(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		timeout:     timeout,
		halfOpenMax: 3,
	}
}

// Execute runs fn if the breaker is closed or half-open, or returns
// ErrCircuitOpen without calling fn at all while it is open. Half-open
// calls are not limited; halfOpenMax consecutive successes close the
// breaker and any failure re-opens it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) > cb.timeout {
			cb.state = StateHalfOpen
			cb.successes = 0
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
		}
	} else {
		cb.failures = 0
	}

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
