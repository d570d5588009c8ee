package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/revue/pkg/config"
)

// MessageSender sends one prompt to one session and returns its
// collected content, with cleanup on every exit path.
type MessageSender struct {
	scheduler *Scheduler
	tuning    config.CollectorConfig
	clock     Clock
	logger    *slog.Logger
}

// NewMessageSender creates a sender using the shared scheduler for
// idle-timeout checks.
func NewMessageSender(scheduler *Scheduler, tuning config.CollectorConfig, clock Clock, logger *slog.Logger) *MessageSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageSender{
		scheduler: scheduler,
		tuning:    tuning,
		clock:     clock,
		logger:    logger,
	}
}

// Send drives one prompt through the session: bind a fresh collector to
// the event streams, arm the idle check, send, and await completion up
// to hardTimeout. On hard timeout a non-blank accumulated buffer is
// returned as a soft success.
func (s *MessageSender) Send(
	ctx context.Context,
	sess Session,
	agentName, prompt string,
	hardTimeout, idleTimeout time.Duration,
) (string, error) {
	collector := NewContentCollector(s.clock, s.tuning)

	subs, err := Register(agentName, collector,
		sess.SubscribeAll, sess.SubscribeMessages, sess.SubscribeIdle, sess.SubscribeErrors,
		s.logger)
	if err != nil {
		return "", err
	}
	defer subs.CloseAll()

	idleTask := s.scheduler.ScheduleIdleCheck(collector, idleTimeout)
	if idleTask != nil {
		defer idleTask.Cancel()
	}

	if err := sess.Prompt(ctx, prompt); err != nil {
		return "", fmt.Errorf("failed to send prompt for agent %s: %w", agentName, err)
	}

	content, err := collector.AwaitResult(hardTimeout)
	if err != nil {
		if errors.Is(err, ErrAwaitTimeout) {
			if accumulated := collector.Accumulated(); !isBlank(accumulated) {
				s.logger.Warn("Hard timeout reached, returning partial accumulated content",
					"agent", agentName,
					"hard_timeout", hardTimeout,
					"accumulated_bytes", len(accumulated),
					"messages", collector.MessageCount())
				return accumulated, nil
			}
		}
		return "", err
	}
	return content, nil
}
