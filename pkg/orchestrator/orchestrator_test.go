package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/breaker"
	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// echoSession answers every prompt with its fixed reply then idles.
type echoSession struct {
	reply string

	mu       sync.Mutex
	handlers map[session.EventType][]session.Handler
}

func newEchoSession(reply string) *echoSession {
	return &echoSession{reply: reply, handlers: make(map[session.EventType][]session.Handler)}
}

func (s *echoSession) subscribe(t session.EventType, h session.Handler) (session.CloseFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = append(s.handlers[t], h)
	return func() error { return nil }, nil
}

func (s *echoSession) SubscribeAll(session.Handler) (session.CloseFunc, error) {
	return func() error { return nil }, nil
}

func (s *echoSession) SubscribeMessages(h session.Handler) (session.CloseFunc, error) {
	return s.subscribe(session.EventMessage, h)
}

func (s *echoSession) SubscribeIdle(h session.Handler) (session.CloseFunc, error) {
	return s.subscribe(session.EventIdle, h)
}

func (s *echoSession) SubscribeErrors(h session.Handler) (session.CloseFunc, error) {
	return s.subscribe(session.EventError, h)
}

func (s *echoSession) Prompt(context.Context, string) error {
	s.mu.Lock()
	messages := append([]session.Handler(nil), s.handlers[session.EventMessage]...)
	idles := append([]session.Handler(nil), s.handlers[session.EventIdle]...)
	s.mu.Unlock()
	go func() {
		for _, h := range messages {
			h(session.EventData{Type: session.EventMessage, Content: s.reply})
		}
		for _, h := range idles {
			h(session.EventData{Type: session.EventIdle})
		}
	}()
	return nil
}

func (s *echoSession) Close() error { return nil }

// echoClient creates echo sessions and records concurrency.
type echoClient struct {
	mu            sync.Mutex
	configs       []session.Config
	inFlight      int
	maxInFlight   int
	sessionDelay  time.Duration
	replyByPrompt func(session.Config) string
}

func (c *echoClient) CreateSession(_ context.Context, cfg session.Config) (session.Session, error) {
	c.mu.Lock()
	c.configs = append(c.configs, cfg)
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
	delay := c.sessionDelay
	reply := "## Review\n\nlooks fine"
	if c.replyByPrompt != nil {
		reply = c.replyByPrompt(cfg)
	}
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
	return newEchoSession(reply), nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Parallelism = 2
	cfg.Passes = 1
	cfg.MaxRetries = 0
	return cfg
}

func testAgents(names ...string) []agent.AgentConfig {
	agents := make([]agent.AgentConfig, 0, len(names))
	for _, name := range names {
		agents = append(agents, agent.AgentConfig{
			Name:                name,
			Model:               "claude-sonnet-4-5",
			SystemPrompt:        "You review code.",
			InstructionTemplate: "Review ${repository}",
			OutputFormat:        "## Output Format",
		})
	}
	return agents
}

func setupBreakers(t *testing.T) {
	t.Helper()
	breaker.Configure(breaker.Settings{FailureThreshold: breaker.DefaultFailureThreshold, ResetTimeout: time.Hour})
	t.Cleanup(breaker.ResetAll)
}

func TestRun_MergesOneResultPerAgent(t *testing.T) {
	setupBreakers(t)
	client := &echoClient{}
	o := New(testConfig(), client, nil, nil)

	results, err := o.Run(context.Background(), Request{
		Agents: testAgents("sec", "perf"),
		Target: agent.RemoteTarget("o/r"),
		Passes: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "sec", results[0].Agent.Name)
	assert.Equal(t, "perf", results[1].Agent.Name)
	for _, r := range results {
		assert.True(t, r.Success, "agent %s: %s", r.Agent.Name, r.ErrorMessage)
		assert.Equal(t, "o/r", r.Repository)
	}
	// 2 agents x 2 passes.
	assert.Len(t, client.configs, 4)
}

func TestRun_RequiresAgents(t *testing.T) {
	setupBreakers(t)
	o := New(testConfig(), &echoClient{}, nil, nil)
	_, err := o.Run(context.Background(), Request{Target: agent.RemoteTarget("o/r")})
	assert.Error(t, err)
}

func TestRun_ParallelismBoundsConcurrentSessions(t *testing.T) {
	setupBreakers(t)
	client := &echoClient{sessionDelay: 30 * time.Millisecond}
	o := New(testConfig(), client, nil, nil)

	_, err := o.Run(context.Background(), Request{
		Agents:      testAgents("a", "b", "c", "d", "e", "f"),
		Target:      agent.RemoteTarget("o/r"),
		Parallelism: 2,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, client.maxInFlight, 2)
	assert.Greater(t, client.maxInFlight, 0)
}

func TestRun_RemoteTargetCarriesTokenizedMCPServers(t *testing.T) {
	setupBreakers(t)
	cfg := testConfig()
	cfg.MCPServers = map[string]config.MCPServerConfig{
		"github": {Type: config.TransportTypeStdio, Command: "gh-mcp", TokenEnv: "GITHUB_TOKEN"},
	}
	client := &echoClient{}
	o := New(cfg, client, nil, nil)

	_, err := o.Run(context.Background(), Request{
		Agents: testAgents("sec"),
		Target: agent.RemoteTarget("o/r"),
		Token:  "gh-token",
	})
	require.NoError(t, err)
	require.Len(t, client.configs, 1)
	servers := client.configs[0].MCPServers
	require.Contains(t, servers, "github")
	assert.Equal(t, "gh-token", servers["github"].Env["GITHUB_TOKEN"])
	// The system config map stays untouched.
	assert.Empty(t, cfg.MCPServers["github"].Env)
}

type countingCollector struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCollector) Collect(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "package main", nil
}

func TestRun_LocalTargetCollectsSourceOnce(t *testing.T) {
	setupBreakers(t)
	files := &countingCollector{}
	client := &echoClient{}
	o := New(testConfig(), client, files, nil)

	results, err := o.Run(context.Background(), Request{
		Agents:      testAgents("sec", "perf", "style"),
		Target:      agent.LocalTarget("/tmp/myrepo"),
		Parallelism: 1,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.Equal(t, "myrepo", r.Repository)
	}
	assert.Equal(t, 1, files.calls, "source payload computed once and cached")
	assert.Empty(t, client.configs[0].MCPServers, "local targets carry no remote tools")
}

func TestRun_FailedAgentRecordedNotReturned(t *testing.T) {
	setupBreakers(t)
	client := &echoClient{}
	agents := testAgents("good")
	agents = append(agents, agent.AgentConfig{
		Name:         "broken",
		Model:        "claude-sonnet-4-5",
		SystemPrompt: "You review code.",
		// Blank instruction template is a configuration error.
		InstructionTemplate: " ",
		OutputFormat:        "## Output Format",
	})
	o := New(testConfig(), client, nil, nil)

	results, err := o.Run(context.Background(), Request{
		Agents: agents,
		Target: agent.RemoteTarget("o/r"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].ErrorMessage, "instruction template")
}
