// Package breaker provides per-call-path circuit breakers that limit
// cascading failures across review agents sharing one LLM transport.
package breaker

import (
	"sync/atomic"
	"time"
)

// Defaults applied when no explicit configuration is provided.
const (
	DefaultFailureThreshold = 8
	DefaultResetTimeout     = 30 * time.Second
)

// Markers stored in openedAt outside the open state.
const (
	// closedMarker means the breaker is closed.
	closedMarker = int64(-1)
	// halfOpenMarker means one probe request is in flight; everyone else
	// is denied until the probe reports success or failure.
	halfOpenMarker = int64(-2)
)

// Breaker is a three-state circuit breaker (closed / open / half-open).
// State transitions use atomics only; Allow never blocks.
type Breaker struct {
	threshold    int32
	resetTimeout time.Duration
	now          func() time.Time

	failures atomic.Int32
	// openedAt holds the open timestamp in unix milliseconds, or one of
	// the markers above.
	openedAt atomic.Int64
}

// New creates a breaker with the given threshold and reset timeout.
// Non-positive values fall back to the defaults. now is the clock used
// for the open window; nil means time.Now.
func New(threshold int, resetTimeout time.Duration, now func() time.Time) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	if now == nil {
		now = time.Now
	}
	b := &Breaker{
		threshold:    int32(threshold),
		resetTimeout: resetTimeout,
		now:          now,
	}
	b.openedAt.Store(closedMarker)
	return b
}

// Allow reports whether a request may proceed. When the reset timeout
// has elapsed on an open breaker, at most one caller wins the CAS into
// half-open and is allowed through; concurrent callers are denied until
// the winner reports success or failure.
func (b *Breaker) Allow() bool {
	if b.failures.Load() < b.threshold {
		return true
	}
	opened := b.openedAt.Load()
	switch opened {
	case closedMarker:
		// Threshold reached but the open timestamp was never recorded.
		// Fail open rather than deadlocking the call path.
		return true
	case halfOpenMarker:
		return false
	}
	if b.now().UnixMilli()-opened < b.resetTimeout.Milliseconds() {
		return false
	}
	// The winner of this swap is the single half-open probe.
	return b.openedAt.CompareAndSwap(opened, halfOpenMarker)
}

// OnSuccess closes the breaker.
func (b *Breaker) OnSuccess() {
	b.failures.Store(0)
	b.openedAt.Store(closedMarker)
}

// OnFailure records one failure, opening the breaker when the threshold
// is reached and re-opening it when a half-open probe fails. The count
// is clamped at the threshold so concurrent workers reporting failures
// against an already open breaker cannot overshoot it.
func (b *Breaker) OnFailure() {
	for {
		n := b.failures.Load()
		if n >= b.threshold {
			break
		}
		if b.failures.CompareAndSwap(n, n+1) {
			break
		}
	}
	if b.failures.Load() >= b.threshold {
		now := b.now().UnixMilli()
		b.openedAt.CompareAndSwap(closedMarker, now)
		b.openedAt.CompareAndSwap(halfOpenMarker, now)
	}
}

// Reset returns the breaker to the closed state. Test affordance.
func (b *Breaker) Reset() {
	b.failures.Store(0)
	b.openedAt.Store(closedMarker)
}

// ConsecutiveFailures returns the current failure count.
func (b *Breaker) ConsecutiveFailures() int {
	return int(b.failures.Load())
}
