package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backoff defaults for pass retries.
const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 8 * time.Second
)

// RetryExecutor runs one pass attempt up to MaxRetries+1 times with
// exponential backoff. Attempts never panic their errors upward: a
// thrown error is mapped to an unsuccessful result and treated like any
// other failed attempt.
type RetryExecutor struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *slog.Logger
}

// NewRetryExecutor creates an executor with the default backoff curve.
func NewRetryExecutor(maxRetries int, logger *slog.Logger) *RetryExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryExecutor{
		MaxRetries:  maxRetries,
		BackoffBase: DefaultBackoffBase,
		BackoffMax:  DefaultBackoffMax,
		Logger:      logger,
	}
}

// Execute invokes attempt until it succeeds or the retry budget is
// exhausted. mapErr converts an attempt error into a failed result.
// Context cancellation during backoff terminates with an interrupted
// failure result.
func (e *RetryExecutor) Execute(
	ctx context.Context,
	attempt func(attemptNo int) (ReviewResult, error),
	mapErr func(error) ReviewResult,
) ReviewResult {
	attempts := e.MaxRetries + 1
	var result ReviewResult
	for n := 1; n <= attempts; n++ {
		res, err := attempt(n)
		if err != nil {
			res = mapErr(err)
		}
		result = res
		if res.Success {
			if n > 1 {
				e.Logger.Info("Review attempt succeeded after retry",
					"agent", res.Agent.Name, "attempt", n)
			}
			return res
		}
		if n < attempts {
			backoff := e.backoffFor(n)
			e.Logger.Warn("Review attempt failed, retrying",
				"agent", res.Agent.Name,
				"attempt", n,
				"backoff", backoff,
				"error", res.ErrorMessage)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return FailureResult(res.Agent, res.Repository,
					fmt.Sprintf("review interrupted during retry backoff: %v", ctx.Err()))
			}
		}
	}
	return result
}

// backoffFor doubles the base per attempt, capped at BackoffMax.
func (e *RetryExecutor) backoffFor(attemptNo int) time.Duration {
	base := e.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	maxBackoff := e.BackoffMax
	if maxBackoff <= 0 {
		maxBackoff = DefaultBackoffMax
	}
	backoff := base << (attemptNo - 1)
	if backoff > maxBackoff || backoff <= 0 {
		return maxBackoff
	}
	return backoff
}
