// Package resilience shields the indexing pipeline from failing
// dependencies: a circuit breaker around object store calls, bounded retry
// for broker publishes and connection setup, and deadline capping for
// startup work.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// running it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker phase: closed passes calls through, open rejects
// them, half-open lets a single probe test recovery.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when the breaker trips and how long it stays
// open. Zero values mean five consecutive failures and a 30s cool-down.
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// CircuitBreaker trips open after consecutive failures so a dead object
// store fails documents fast instead of stalling every ingest worker on
// backend timeouts. After the cool-down one probe call is let through; its
// outcome decides between closing and re-opening.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a breaker, filling config defaults for zero
// values.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		log:   slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn when the breaker allows it and records the outcome. A
// rejected call returns an error wrapping ErrCircuitOpen without invoking
// fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// GetState returns the current breaker phase.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed, discarding failure history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probing = false
	cb.log.Info("circuit reset")
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		remaining := cb.cfg.ResetTimeout - time.Since(cb.openedAt)
		if remaining > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, remaining)
		}
		cb.state = StateHalfOpen
		cb.probing = true
		cb.log.Info("circuit half-open, probing", "after", cb.cfg.ResetTimeout)
		return nil
	case StateHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		if cb.state == StateHalfOpen {
			cb.log.Info("circuit closed, backend recovered")
		}
		cb.state = StateClosed
		cb.failures = 0
		cb.probing = false
		return
	}

	cb.failures++
	cb.openedAt = time.Now()
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.log.Warn("circuit opened",
				"consecutive_failures", cb.failures,
				"threshold", cb.cfg.FailureThreshold,
			)
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.probing = false
		cb.log.Warn("circuit re-opened, probe failed")
	}
}
