package config

import "fmt"

// Transport types supported for MCP servers.
const (
	TransportTypeStdio = "stdio"
	TransportTypeHTTP  = "http"
	TransportTypeSSE   = "sse"
)

// MCPServerConfig defines one remote-tool (MCP) server. The map of
// configured servers is passed to the transport as-is; revue only
// inspects it for validation, token injection, and preflight checks.
type MCPServerConfig struct {
	// Transport type: stdio, http, or sse.
	Type string `yaml:"type"`

	// Command and Args apply to stdio transports.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`

	// URL applies to http/sse transports.
	URL string `yaml:"url,omitempty"`

	// Env is merged into the server process environment (stdio) or
	// ignored (http/sse).
	Env map[string]string `yaml:"env,omitempty"`

	// TokenEnv names the env key that receives the review token when one
	// is supplied with the request. Empty means the server gets no token.
	TokenEnv string `yaml:"token_env,omitempty"`

	// BearerToken authorizes http/sse transports.
	BearerToken string `yaml:"bearer_token,omitempty"`

	// Instructions for the model when using this server.
	Instructions string `yaml:"instructions,omitempty"`
}

// Validate checks the transport shape.
func (c MCPServerConfig) Validate() error {
	switch c.Type {
	case TransportTypeStdio:
		if c.Command == "" {
			return fmt.Errorf("stdio transport requires command")
		}
	case TransportTypeHTTP, TransportTypeSSE:
		if c.URL == "" {
			return fmt.Errorf("%s transport requires url", c.Type)
		}
	default:
		return fmt.Errorf("unsupported transport type: %q", c.Type)
	}
	return nil
}

// ServersWithToken returns a copy of the server map with the review
// token injected into each server that declares a TokenEnv. The input
// map is never mutated; the result is computed once per orchestration
// and treated as read-only afterwards.
func ServersWithToken(servers map[string]MCPServerConfig, token string) map[string]MCPServerConfig {
	if len(servers) == 0 {
		return nil
	}
	out := make(map[string]MCPServerConfig, len(servers))
	for id, srv := range servers {
		if token != "" && srv.TokenEnv != "" {
			env := make(map[string]string, len(srv.Env)+1)
			for k, v := range srv.Env {
				env[k] = v
			}
			env[srv.TokenEnv] = token
			srv.Env = env
		}
		out[id] = srv
	}
	return out
}
