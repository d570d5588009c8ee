package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/revue/pkg/config"
)

// ContentCollector assembles one session's textual output from an
// asynchronous event stream and yields it through a single-shot result.
// Event handlers may run concurrently on transport goroutines; the
// append path is guarded by one mutex, counters and the last-message
// snapshot use atomics.
//
// The last non-blank message is preferred as the result because
// streaming transports often emit intermediate chunks followed by one
// final self-contained answer. The accumulated buffer is the safety net
// for transports that split the final answer across events, and is
// capped so a malfunctioning transport cannot exhaust memory.
type ContentCollector struct {
	clock          Clock
	maxAccumulated int

	mu      sync.Mutex
	buf     []byte
	size    int
	version uint64
	// joined memoizes the buffer join; valid iff joinedVersion == version.
	joined        string
	joinedVersion uint64
	joinedValid   bool

	lastContent    atomic.Pointer[string]
	lastActivityMs atomic.Int64
	messageCount   atomic.Int64
	toolCallCount  atomic.Int64

	completeOnce sync.Once
	done         chan struct{}
	// result fields are written exactly once, before done is closed.
	resultContent string
	resultErr     error
}

// NewContentCollector creates a collector with the given tuning. A nil
// clock means time.Now.
func NewContentCollector(clock Clock, tuning config.CollectorConfig) *ContentCollector {
	if clock == nil {
		clock = time.Now
	}
	maxSize := tuning.MaxAccumulatedSize
	if maxSize <= 0 {
		maxSize = 4 * 1024 * 1024
	}
	initial := tuning.InitialCapacity
	if initial <= 0 || initial > maxSize {
		initial = min(16*1024, maxSize)
	}
	c := &ContentCollector{
		clock:          clock,
		maxAccumulated: maxSize,
		buf:            make([]byte, 0, initial),
		done:           make(chan struct{}),
	}
	c.lastActivityMs.Store(clock().UnixMilli())
	return c
}

// OnActivity records that the session produced any event at all.
func (c *ContentCollector) OnActivity() {
	c.lastActivityMs.Store(c.clock().UnixMilli())
}

// OnMessage records one message event. Blank content never touches the
// buffer or the last-message snapshot. A message that would exceed the
// remaining buffer budget is dropped whole; the last-message snapshot
// still updates so OnIdle can complete with it.
func (c *ContentCollector) OnMessage(content string, toolCalls int) {
	c.messageCount.Add(1)
	if toolCalls > 0 {
		c.toolCallCount.Add(int64(toolCalls))
	}
	if isBlank(content) {
		return
	}
	c.lastContent.Store(&content)

	c.mu.Lock()
	if c.size+len(content) <= c.maxAccumulated {
		c.buf = append(c.buf, content...)
		c.size += len(content)
		c.version++
	}
	c.mu.Unlock()
}

// OnIdle completes the result with the last message if non-blank, else
// the joined buffer if non-blank, else empty content.
func (c *ContentCollector) OnIdle() {
	if last := c.LastContent(); !isBlank(last) {
		c.complete(last, nil)
		return
	}
	if joined := c.Accumulated(); !isBlank(joined) {
		c.complete(joined, nil)
		return
	}
	c.complete("", nil)
}

// OnError completes the result exceptionally with the transport's
// error message.
func (c *ContentCollector) OnError(msg string) {
	c.complete("", &SessionEventError{Message: msg})
}

// OnIdleTimeout trips the session: accumulated content wins if any,
// otherwise the result fails with the timeout condition.
func (c *ContentCollector) OnIdleTimeout(elapsed, limit time.Duration) {
	if joined := c.Accumulated(); !isBlank(joined) {
		c.complete(joined, nil)
		return
	}
	c.complete("", &IdleTimeoutError{Elapsed: elapsed, Limit: limit})
}

// ElapsedSinceLastActivity returns the idle duration.
func (c *ContentCollector) ElapsedSinceLastActivity() time.Duration {
	return time.Duration(c.clock().UnixMilli()-c.lastActivityMs.Load()) * time.Millisecond
}

// AwaitResult blocks until the session completes or hardTimeout
// elapses. On hard timeout it returns ErrAwaitTimeout without
// completing the result; the caller may still consult Accumulated.
func (c *ContentCollector) AwaitResult(hardTimeout time.Duration) (string, error) {
	timer := time.NewTimer(hardTimeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return c.resultContent, c.resultErr
	case <-timer.C:
		return "", ErrAwaitTimeout
	}
}

// Accumulated returns the joined buffer, memoized per buffer version.
func (c *ContentCollector) Accumulated() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joinedValid && c.joinedVersion == c.version {
		return c.joined
	}
	c.joined = string(c.buf)
	c.joinedVersion = c.version
	c.joinedValid = true
	return c.joined
}

// LastContent returns the last non-blank message, or empty.
func (c *ContentCollector) LastContent() string {
	if p := c.lastContent.Load(); p != nil {
		return *p
	}
	return ""
}

// AccumulatedSize returns the byte count currently held in the buffer.
func (c *ContentCollector) AccumulatedSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// MessageCount returns the number of message events observed.
func (c *ContentCollector) MessageCount() int {
	return int(c.messageCount.Load())
}

// ToolCallCount returns the total tool calls reported by the transport.
func (c *ContentCollector) ToolCallCount() int {
	return int(c.toolCallCount.Load())
}

// Completed reports whether the result has been produced.
func (c *ContentCollector) Completed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// complete finishes the single-shot result. Later calls are no-ops.
func (c *ContentCollector) complete(content string, err error) {
	c.completeOnce.Do(func() {
		c.resultContent = content
		c.resultErr = err
		close(c.done)
	})
}
