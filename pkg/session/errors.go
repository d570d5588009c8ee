package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrAwaitTimeout is returned by AwaitResult when the hard wall-clock
// budget elapses before the session completes. The collector's future
// stays unfinished; the caller decides whether accumulated content
// salvages the attempt.
var ErrAwaitTimeout = errors.New("session result wait timed out")

// SessionEventError is raised when the transport emits an error event.
type SessionEventError struct {
	Message string
}

func (e *SessionEventError) Error() string {
	return fmt.Sprintf("session error event: %s", e.Message)
}

// IdleTimeoutError is raised when no events arrive within the idle
// budget and no content was accumulated.
type IdleTimeoutError struct {
	Elapsed time.Duration
	Limit   time.Duration
}

func (e *IdleTimeoutError) Error() string {
	return fmt.Sprintf("session idle for %s, exceeding idle timeout %s", e.Elapsed, e.Limit)
}
