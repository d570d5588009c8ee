// Package llm implements the session transport on the Anthropic
// Messages API. Each session is one streamed conversation; responses
// are delivered through the event subscriptions the driver binds.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// mcpBetaHeader enables the MCP connector on the Messages API.
const mcpBetaHeader = "mcp-client-2025-04-04"

// DefaultMaxTokens caps one response when no thinking budget raises it.
const DefaultMaxTokens = 8192

// MessagesAPI is the subset of the Anthropic SDK the transport uses.
// Satisfied by *sdk.MessageService; mocked in tests.
type MessagesAPI interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// SessionClient opens chat sessions on the Anthropic Messages API.
type SessionClient struct {
	msg              MessagesAPI
	baseSystemPrompt string
	maxTokens        int64
	logger           *slog.Logger
}

// Options configures the transport.
type Options struct {
	// BaseSystemPrompt is prepended in append mode.
	BaseSystemPrompt string
	// MaxTokens caps one response; zero means DefaultMaxTokens.
	MaxTokens int64
}

// NewSessionClient creates a client from an API key.
func NewSessionClient(apiKey string, opts Options, logger *slog.Logger) (*SessionClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewSessionClientWithAPI(&ac.Messages, opts, logger), nil
}

// NewSessionClientWithAPI creates a client over an existing Messages
// API, for tests and custom HTTP wiring.
func NewSessionClientWithAPI(msg MessagesAPI, opts Options, logger *slog.Logger) *SessionClient {
	if logger == nil {
		logger = slog.Default()
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &SessionClient{
		msg:              msg,
		baseSystemPrompt: opts.BaseSystemPrompt,
		maxTokens:        maxTokens,
		logger:           logger,
	}
}

// CreateSession opens one conversation. The returned session delivers
// responses through its event subscriptions.
func (c *SessionClient) CreateSession(_ context.Context, cfg session.Config) (session.Session, error) {
	if cfg.Model == "" {
		return nil, errors.New("session model is required")
	}

	system := c.systemBlocks(cfg)
	reqOpts, err := c.mcpOptions(cfg.MCPServers)
	if err != nil {
		return nil, err
	}

	s := newChatSession(c, cfg, system, reqOpts)
	c.logger.Debug("Created session",
		"session_id", s.id,
		"model", cfg.Model,
		"mcp_servers", len(cfg.MCPServers))
	return s, nil
}

func (c *SessionClient) systemBlocks(cfg session.Config) []sdk.TextBlockParam {
	var blocks []sdk.TextBlockParam
	if cfg.SystemPromptMode == session.SystemPromptAppend && c.baseSystemPrompt != "" {
		blocks = append(blocks, sdk.TextBlockParam{Text: c.baseSystemPrompt})
	}
	if cfg.SystemPrompt != "" {
		blocks = append(blocks, sdk.TextBlockParam{Text: cfg.SystemPrompt})
	}
	return blocks
}

// mcpServerPayload is the MCP connector entry of the Messages API.
type mcpServerPayload struct {
	Type               string `json:"type"`
	URL                string `json:"url"`
	Name               string `json:"name"`
	AuthorizationToken string `json:"authorization_token,omitempty"`
}

// mcpOptions maps the remote-tool configuration onto the MCP connector.
// Only URL-reachable servers can ride along on the API call; stdio
// servers are for local preflight only and are skipped here.
func (c *SessionClient) mcpOptions(servers map[string]config.MCPServerConfig) ([]option.RequestOption, error) {
	if len(servers) == 0 {
		return nil, nil
	}
	payloads := make([]mcpServerPayload, 0, len(servers))
	for id, srv := range servers {
		switch srv.Type {
		case config.TransportTypeHTTP, config.TransportTypeSSE:
			payloads = append(payloads, mcpServerPayload{
				Type:               "url",
				URL:                srv.URL,
				Name:               id,
				AuthorizationToken: authorizationToken(srv),
			})
		case config.TransportTypeStdio:
			c.logger.Warn("Skipping stdio MCP server on the API transport", "server", id)
		default:
			return nil, fmt.Errorf("mcp server %q: unsupported type %q", id, srv.Type)
		}
	}
	if len(payloads) == 0 {
		return nil, nil
	}
	return []option.RequestOption{
		option.WithHeaderAdd("anthropic-beta", mcpBetaHeader),
		option.WithJSONSet("mcp_servers", payloads),
	}, nil
}

// authorizationToken resolves the bearer token for a URL server: the
// explicit token wins, otherwise the value injected under TokenEnv.
func authorizationToken(srv config.MCPServerConfig) string {
	if srv.BearerToken != "" {
		return srv.BearerToken
	}
	if srv.TokenEnv != "" {
		return srv.Env[srv.TokenEnv]
	}
	return ""
}

// thinkingBudget maps a reasoning effort level to a token budget.
func thinkingBudget(effort string) int64 {
	switch effort {
	case "low":
		return 2048
	case "medium":
		return 8192
	case "high":
		return 16384
	default:
		return 0
	}
}
