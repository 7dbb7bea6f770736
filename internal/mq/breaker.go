package mq

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without touching the broker while the breaker
// is open
var ErrCircuitOpen = errors.New("amqp circuit breaker open")

// BreakerState is the state of a Breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
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

// Breaker stops publishing after consecutive broker failures so that a down
// broker costs callers nothing until the cooldown has passed. In half-open
// state a single trial publish is let through at a time.
type Breaker struct {
	mu sync.Mutex

	state         BreakerState
	failures      int
	successes     int
	openedAt      time.Time
	trialInFlight bool
	failureLimit  int
	successLimit  int
	cooldown      time.Duration
	now           func() time.Time
}

// NewBreaker opens after failureLimit consecutive failures and retries after
// cooldown
func NewBreaker(failureLimit int, cooldown time.Duration) *Breaker {
	return &Breaker{
		state:        StateClosed,
		failureLimit: failureLimit,
		successLimit: 1,
		cooldown:     cooldown,
		now:          time.Now,
	}
}

// CanAttempt reports whether a publish may go to the broker
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.successes = 0
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// RecordSuccess records a publish the broker accepted
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateHalfOpen {
		return
	}
	b.trialInFlight = false
	b.successes++
	if b.successes >= b.successLimit {
		b.state = StateClosed
		b.successes = 0
	}
}

// RecordFailure records a publish that failed at the broker
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.failureLimit {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.trialInFlight = false
	b.successes = 0
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
