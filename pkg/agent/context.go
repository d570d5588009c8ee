package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// ReviewContext is the shared, effectively immutable bundle passed by
// reference to every agent runner of one orchestration. The two caches
// (remote-tool map, local source payload) are installed at most once
// and read-only afterwards.
type ReviewContext struct {
	Client      session.Client
	Timeout     time.Duration
	IdleTimeout time.Duration
	MaxRetries  int

	// ReasoningEffort requests extended reasoning where supported.
	ReasoningEffort string

	CustomInstructions []string
	OutputConstraints  string

	Scheduler *session.Scheduler
	Tuning    config.CollectorConfig
	Source    config.SourceConfig
	Clock     session.Clock

	mu           sync.RWMutex
	mcpServers   map[string]config.MCPServerConfig
	sourceLoaded bool
	source       string
}

// Validate checks the context invariants before fan-out.
func (rc *ReviewContext) Validate() error {
	if rc.Client == nil {
		return fmt.Errorf("review context: session client must not be nil")
	}
	if rc.Scheduler == nil {
		return fmt.Errorf("review context: shared scheduler must not be nil")
	}
	if rc.Timeout <= 0 {
		return fmt.Errorf("review context: timeout must be positive, got %s", rc.Timeout)
	}
	if rc.IdleTimeout <= 0 {
		return fmt.Errorf("review context: idle timeout must be positive, got %s", rc.IdleTimeout)
	}
	if rc.MaxRetries < 0 {
		return fmt.Errorf("review context: max retries must not be negative, got %d", rc.MaxRetries)
	}
	return nil
}

// InstallMCPServers installs the precomputed remote-tool configuration.
// Only the first call takes effect.
func (rc *ReviewContext) InstallMCPServers(servers map[string]config.MCPServerConfig) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.mcpServers == nil {
		rc.mcpServers = servers
	}
}

// MCPServers returns the cached remote-tool configuration, or nil.
func (rc *ReviewContext) MCPServers() map[string]config.MCPServerConfig {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.mcpServers
}

// InstallSourceContent caches the local source payload so subsequent
// agents reuse it. Only the first call takes effect.
func (rc *ReviewContext) InstallSourceContent(content string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !rc.sourceLoaded {
		rc.source = content
		rc.sourceLoaded = true
	}
}

// SourceContent returns the cached source payload and whether one has
// been installed.
func (rc *ReviewContext) SourceContent() (string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.source, rc.sourceLoaded
}
