// Package runner executes one review pass for one agent against one
// target, with retries, circuit breaking, and the empty-response
// recovery flow.
package runner

import (
	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// NewSessionConfig assembles the session configuration for one pass:
// model, system prompt in append mode, the remote-tool map when
// provided, and reasoning effort for models that support it.
func NewSessionConfig(
	cfg agent.AgentConfig,
	rc *agent.ReviewContext,
	systemPrompt string,
	mcpServers map[string]config.MCPServerConfig,
) session.Config {
	sc := session.Config{
		Model:            cfg.Model,
		SystemPromptMode: session.SystemPromptAppend,
		SystemPrompt:     systemPrompt,
	}
	if len(mcpServers) > 0 {
		sc.MCPServers = mcpServers
	}
	if effort := agent.ResolveReasoningEffort(cfg.Model, rc.ReasoningEffort); effort != "" {
		sc.ReasoningEffort = effort
	}
	return sc
}
