package session

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultMinCheckInterval bounds the idle-check period from below so
// tiny idle budgets do not spin.
const DefaultMinCheckInterval = 5 * time.Second

// Scheduler runs repeating background tasks. One scheduler is shared by
// all sessions of an orchestration; each session arms its own
// idle-timeout check and cancels it on completion.
type Scheduler struct {
	minCheckInterval time.Duration

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler with the default minimum check
// interval.
func NewScheduler() *Scheduler {
	return NewSchedulerWithMinInterval(DefaultMinCheckInterval)
}

// NewSchedulerWithMinInterval creates a scheduler with a custom minimum
// check interval. Tests use small intervals to avoid waiting.
func NewSchedulerWithMinInterval(minInterval time.Duration) *Scheduler {
	if minInterval <= 0 {
		minInterval = DefaultMinCheckInterval
	}
	return &Scheduler{
		minCheckInterval: minInterval,
		stopCh:           make(chan struct{}),
	}
}

// Task is one scheduled repeating task.
type Task struct {
	cancelOnce sync.Once
	cancelCh   chan struct{}
}

// Cancel stops the task. Safe to call multiple times.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() { close(t.cancelCh) })
}

// Schedule arms fn to run every period until cancelled or the scheduler
// closes. Returns nil if the scheduler is already closed.
func (s *Scheduler) Schedule(period time.Duration, fn func(task *Task)) *Task {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Warn("Schedule called on closed scheduler")
		return nil
	}
	task := &Task{cancelCh: make(chan struct{})}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(task)
			case <-task.cancelCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	return task
}

// ScheduleIdleCheck arms the idle-timeout check for one collector. The
// check period is a quarter of the idle budget, bounded below by the
// minimum interval to keep detection latency small without spinning.
// The collector is idempotent on completion, so a late extra trip is
// harmless.
func (s *Scheduler) ScheduleIdleCheck(c *ContentCollector, idleTimeout time.Duration) *Task {
	period := idleTimeout / 4
	if period < s.minCheckInterval {
		period = s.minCheckInterval
	}
	return s.Schedule(period, func(task *Task) {
		elapsed := c.ElapsedSinceLastActivity()
		if elapsed >= idleTimeout {
			c.OnIdleTimeout(elapsed, idleTimeout)
			task.Cancel()
		}
	})
}

// Close stops all tasks and waits for their goroutines to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
