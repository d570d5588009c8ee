// Package session implements the event-driven session driver: content
// collection for one LLM session, idle-timeout scheduling, event
// binding, and the prompt-send message flow. The transport behind a
// session is abstracted by the Client interface so the driver can be
// exercised with stubs.
package session

import (
	"context"
	"time"

	"github.com/codeready-toolchain/revue/pkg/config"
)

// EventType identifies one session event stream.
type EventType string

const (
	// EventActivity is a bare liveness tick delivered only to all-events
	// subscribers; it carries no content.
	EventActivity EventType = "activity"
	EventMessage  EventType = "message"
	EventIdle     EventType = "idle"
	EventError    EventType = "error"
)

// EventData carries one transport event.
type EventData struct {
	Type         EventType
	Content      string
	ToolCalls    int
	ErrorMessage string
}

// Handler consumes one event. Handlers run on transport-supplied
// goroutines and may be invoked concurrently.
type Handler func(EventData)

// CloseFunc tears down one subscription.
type CloseFunc func() error

// SubscribeFunc registers a handler on one event stream and returns the
// subscription closer.
type SubscribeFunc func(Handler) (CloseFunc, error)

// SystemPromptMode selects how the system prompt is installed.
type SystemPromptMode string

const (
	// SystemPromptAppend adds the prompt after the transport's base
	// system instructions.
	SystemPromptAppend SystemPromptMode = "append"
	// SystemPromptReplace substitutes the transport's base instructions
	// entirely.
	SystemPromptReplace SystemPromptMode = "replace"
)

// Config describes one session to be opened on the transport.
type Config struct {
	Model            string
	SystemPromptMode SystemPromptMode
	SystemPrompt     string
	// MCPServers is the remote-tool configuration map, passed to the
	// transport verbatim. Nil when the target needs no remote tools.
	MCPServers map[string]config.MCPServerConfig
	// ReasoningEffort is set only for models known to support it.
	ReasoningEffort string
}

// Session is one LLM conversation opened through the transport.
type Session interface {
	// Prompt sends one prompt. Delivery of the response happens through
	// the event subscriptions, not the return value.
	Prompt(ctx context.Context, text string) error

	SubscribeAll(Handler) (CloseFunc, error)
	SubscribeMessages(Handler) (CloseFunc, error)
	SubscribeIdle(Handler) (CloseFunc, error)
	SubscribeErrors(Handler) (CloseFunc, error)

	// Close is idempotent.
	Close() error
}

// Client opens sessions on the transport.
type Client interface {
	CreateSession(ctx context.Context, cfg Config) (Session, error)
}

// Clock supplies the current time. Injected so collectors and
// schedulers can be tested without sleeping.
type Clock func() time.Time
