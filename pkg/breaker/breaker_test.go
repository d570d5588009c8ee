package breaker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for breaker tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBreaker_ClosedAllowsRequests(t *testing.T) {
	b := New(3, 100*time.Millisecond, nil)
	for i := 0; i < 10; i++ {
		assert.True(t, b.Allow())
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	b := New(3, 100*time.Millisecond, clock.Now)

	b.OnFailure()
	b.OnFailure()
	assert.True(t, b.Allow(), "below threshold still allows")

	b.OnFailure()
	assert.False(t, b.Allow(), "threshold reached denies")
	assert.Equal(t, 3, b.ConsecutiveFailures())
}

func TestBreaker_SuccessResets(t *testing.T) {
	b := New(3, 100*time.Millisecond, nil)
	b.OnFailure()
	b.OnFailure()
	b.OnFailure()
	require.False(t, b.Allow())

	b.OnSuccess()
	assert.True(t, b.Allow())
	assert.Equal(t, 0, b.ConsecutiveFailures())
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	clock := newFakeClock()
	b := New(3, 100*time.Millisecond, clock.Now)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	require.False(t, b.Allow())

	clock.Advance(101 * time.Millisecond)
	assert.True(t, b.Allow(), "first caller after reset timeout enters half-open")

	// A failure in the half-open window re-opens immediately.
	b.OnFailure()
	assert.False(t, b.Allow())
}

func TestBreaker_HalfOpenSingleWinner(t *testing.T) {
	clock := newFakeClock()
	b := New(3, 100*time.Millisecond, clock.Now)
	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	clock.Advance(101 * time.Millisecond)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load(), "exactly one caller wins the half-open slot")
}

func TestBreaker_FailuresPastThresholdKeepSingleHalfOpenSlot(t *testing.T) {
	clock := newFakeClock()
	b := New(3, 100*time.Millisecond, clock.Now)

	// More failures than the threshold, as concurrent workers report
	// errors against an already open breaker.
	for i := 0; i < 5; i++ {
		b.OnFailure()
	}
	assert.Equal(t, 3, b.ConsecutiveFailures(), "count clamps at the threshold")
	require.False(t, b.Allow())

	clock.Advance(101 * time.Millisecond)
	assert.True(t, b.Allow(), "first caller enters half-open")
	assert.False(t, b.Allow(), "second caller is denied until the probe resolves")
	assert.False(t, b.Allow())

	// The probe's failure re-opens the breaker.
	b.OnFailure()
	assert.False(t, b.Allow())
}

func TestBreaker_FailOpenOnInconsistentState(t *testing.T) {
	b := New(2, time.Hour, nil)
	// Force the inconsistent state: failures at threshold, no open timestamp.
	b.failures.Store(2)
	b.openedAt.Store(closedMarker)
	assert.True(t, b.Allow())
}

func TestRegistry_IsolatedPaths(t *testing.T) {
	Configure(Settings{FailureThreshold: 2, ResetTimeout: time.Hour})
	defer ResetAll()

	review := Get(PathReview)
	review.OnFailure()
	review.OnFailure()

	assert.False(t, Get(PathReview).Allow())
	assert.True(t, Get(PathSkill).Allow())
	assert.True(t, Get(PathSummary).Allow())
}

func TestRegistry_ResetAll(t *testing.T) {
	Configure(Settings{FailureThreshold: 1, ResetTimeout: time.Hour})
	Get(PathSummary).OnFailure()
	require.False(t, Get(PathSummary).Allow())

	ResetAll()
	assert.True(t, Get(PathSummary).Allow())
}
