package session

import (
	"fmt"
	"log/slog"
)

// Subscriptions owns the four event subscriptions bound for one
// session. Close always flows subscription → transport; the collector
// never learns about the subscriptions.
type Subscriptions struct {
	agentName string
	closers   []CloseFunc
	logger    *slog.Logger
}

// Register binds a collector to the four session event streams:
// all-events feeds the activity clock, message events feed content
// accumulation, idle and error events complete the result. On partial
// failure every already-registered subscription is closed before the
// error is returned.
func Register(
	agentName string,
	c *ContentCollector,
	all, messages, idle, errs SubscribeFunc,
	logger *slog.Logger,
) (*Subscriptions, error) {
	if logger == nil {
		logger = slog.Default()
	}
	subs := &Subscriptions{agentName: agentName, logger: logger}

	bindings := []struct {
		name      string
		subscribe SubscribeFunc
		handler   Handler
	}{
		{"all-events", all, func(EventData) {
			c.OnActivity()
		}},
		{"message", messages, func(d EventData) {
			logger.Debug("Session message event",
				"agent", agentName, "content_len", len(d.Content), "tool_calls", d.ToolCalls)
			c.OnMessage(d.Content, d.ToolCalls)
		}},
		{"idle", idle, func(EventData) {
			logger.Debug("Session idle event", "agent", agentName)
			c.OnIdle()
		}},
		{"error", errs, func(d EventData) {
			logger.Debug("Session error event", "agent", agentName, "error", d.ErrorMessage)
			c.OnError(d.ErrorMessage)
		}},
	}

	for _, b := range bindings {
		closer, err := b.subscribe(b.handler)
		if err != nil {
			subs.CloseAll()
			return nil, fmt.Errorf("failed to subscribe %s events for agent %s: %w", b.name, agentName, err)
		}
		subs.closers = append(subs.closers, closer)
	}
	return subs, nil
}

// CloseAll closes every subscription. Per-subscription close errors are
// logged at debug and swallowed; cleanup must not mask the session
// outcome.
func (s *Subscriptions) CloseAll() {
	for i, closer := range s.closers {
		if closer == nil {
			continue
		}
		if err := closer(); err != nil {
			s.logger.Debug("Failed to close session subscription",
				"agent", s.agentName, "index", i, "error", err)
		}
	}
	s.closers = nil
}
