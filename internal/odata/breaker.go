package odata

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = errors.New("odata: circuit breaker is open")

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows all requests through. Failures are counted.
	BreakerClosed BreakerState = iota
	// BreakerHalfOpen lets trial requests through.
	BreakerHalfOpen
	// BreakerOpen rejects all requests immediately.
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// minErrorRateSamples is the minimum number of requests in a window before
// the error rate threshold is evaluated.
const minErrorRateSamples = 10

// BreakerSettings configures a Breaker. Zero values fall back to defaults.
type BreakerSettings struct {
	FailureThreshold   int
	SuccessThreshold   int
	OpenTimeout        time.Duration
	ErrorRateThreshold float64
	ErrorRateWindow    time.Duration

	// OnStateChange, when set, is called with the new state after every
	// transition. It runs with the breaker lock held and must not call back
	// into the breaker.
	OnStateChange func(BreakerState)
}

// Breaker guards the remote service. It trips on consecutive failures or on
// the error rate within a tumbling window, and is safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	settings BreakerSettings
	now      func() time.Time

	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	windowStart    time.Time
	windowTotal    int
	windowFailures int
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.FailureThreshold < 1 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold < 1 {
		s.SuccessThreshold = 2
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	b := &Breaker{settings: s, now: time.Now}
	b.windowStart = b.now()
	return b
}

// Allow reports whether a request may go out. It returns ErrBreakerOpen
// while the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpen()
	if b.state == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

// RecordSuccess records a successful request.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
		b.recordWindowCall(false)
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.failures = 0
			b.successes = 0
			b.resetWindow()
			b.transition(BreakerClosed)
		}
	}
}

// RecordFailure records a failed request.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		b.recordWindowCall(true)
		if b.failures >= b.settings.FailureThreshold || b.errorRateExceeded() {
			b.openedAt = b.now()
			b.resetWindow()
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		// Any failure while probing reopens.
		b.openedAt = b.now()
		b.successes = 0
		b.transition(BreakerOpen)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpen()
	return b.state
}

// HealthCheck fails while the breaker is open.
func (b *Breaker) HealthCheck(context.Context) error {
	if b.State() == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

// maybeHalfOpen moves an expired open breaker to half-open. Must be called
// with lock held.
func (b *Breaker) maybeHalfOpen() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) > b.settings.OpenTimeout {
		b.successes = 0
		b.transition(BreakerHalfOpen)
	}
}

// transition must be called with lock held.
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	b.state = to
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(to)
	}
}

// recordWindowCall must be called with lock held.
func (b *Breaker) recordWindowCall(isFailure bool) {
	if b.settings.ErrorRateWindow <= 0 {
		return
	}
	if b.now().Sub(b.windowStart) > b.settings.ErrorRateWindow {
		b.resetWindow()
	}
	b.windowTotal++
	if isFailure {
		b.windowFailures++
	}
}

// resetWindow must be called with lock held.
func (b *Breaker) resetWindow() {
	b.windowStart = b.now()
	b.windowTotal = 0
	b.windowFailures = 0
}

// errorRateExceeded must be called with lock held.
func (b *Breaker) errorRateExceeded() bool {
	if b.settings.ErrorRateThreshold <= 0 || b.settings.ErrorRateWindow <= 0 {
		return false
	}
	if b.windowTotal < minErrorRateSamples {
		return false
	}
	rate := float64(b.windowFailures) / float64(b.windowTotal)
	return rate >= b.settings.ErrorRateThreshold
}
