// Package circuitbreaker keeps a dead notification destination from being
// hammered on every alert. Consecutive delivery failures open the circuit;
// after a cooldown a single probe is let through before fully closing again.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type destinationState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks delivery health per destination URL. The notifier
// asks Allow before each dispatch and reports the outcome afterwards.
type CircuitBreaker struct {
	mu           sync.Mutex
	destinations map[string]*destinationState
	threshold    int
	cooldown     time.Duration
	clock        func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		destinations: make(map[string]*destinationState),
		threshold:    threshold,
		cooldown:     cooldown,
		clock:        time.Now,
	}
}

// Allow reports whether a delivery to the destination may proceed.
// An open circuit past its cooldown transitions to half-open and admits
// exactly one probe; further calls are rejected until the probe reports.
func (cb *CircuitBreaker) Allow(destination string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.destinations[destination]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(destination string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.destinations[destination]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(destination string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.destinations[destination]
	if !ok {
		s = &destinationState{}
		cb.destinations[destination] = s
	}

	s.consecutiveFailures++
	if s.state == stateHalfOpen || s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
