// Package config provides configuration management for revue: the
// revue.yaml system file, agent and skill definition files, and MCP
// server configurations.
package config

import (
	"fmt"
	"time"

	"github.com/codeready-toolchain/revue/pkg/breaker"
)

// Config is the fully merged and validated system configuration.
type Config struct {
	// AgentsDir holds agent definition files (*.md with front-matter).
	AgentsDir string `yaml:"agents_dir"`
	// SkillsDir holds skill definition files referenced by agents.
	SkillsDir string `yaml:"skills_dir"`
	// OutputDir receives the per-agent reports and the executive summary.
	OutputDir string `yaml:"output_dir"`

	// DefaultModel is used by agents that do not pin a model.
	DefaultModel string `yaml:"default_model"`
	// DefaultOutputFormat replaces the built-in output format section for
	// agents whose definition omits one.
	DefaultOutputFormat string `yaml:"default_output_format"`

	TimeoutMinutes     int `yaml:"timeout_minutes"`
	IdleTimeoutMinutes int `yaml:"idle_timeout_minutes"`
	MaxRetries         int `yaml:"max_retries"`
	Parallelism        int `yaml:"parallelism"`
	Passes             int `yaml:"passes"`

	// ReasoningEffort requests extended reasoning on models that support
	// it ("low", "medium", "high"). Empty disables it.
	ReasoningEffort string `yaml:"reasoning_effort"`

	// CustomInstructions are appended to every agent's system prompt
	// inside the project-instructions block.
	CustomInstructions []string `yaml:"custom_instructions"`
	// OutputConstraints is prepended to the project-instructions block.
	OutputConstraints string `yaml:"output_constraints"`

	Breaker    breaker.Settings           `yaml:"circuit_breaker"`
	Collector  CollectorConfig            `yaml:"collector"`
	Source     SourceConfig               `yaml:"source"`
	Summary    SummaryConfig              `yaml:"summary"`
	MCPServers map[string]MCPServerConfig `yaml:"mcp_servers"`
}

// CollectorConfig tunes the session content collector.
type CollectorConfig struct {
	// MaxAccumulatedSize caps the accumulated message buffer in bytes.
	MaxAccumulatedSize int `yaml:"max_accumulated_size"`
	// InitialCapacity pre-sizes the buffer.
	InitialCapacity int `yaml:"initial_capacity"`
}

// SourceConfig bounds local source collection.
type SourceConfig struct {
	MaxFileBytes  int64    `yaml:"max_file_bytes"`
	MaxTotalBytes int64    `yaml:"max_total_bytes"`
	Extensions    []string `yaml:"extensions"`
	ExcludeDirs   []string `yaml:"exclude_dirs"`
}

// SummaryConfig bounds executive summary generation.
type SummaryConfig struct {
	Model                 string `yaml:"model"`
	TimeoutMinutes        int    `yaml:"timeout_minutes"`
	MaxAttempts           int    `yaml:"max_attempts"`
	MaxContentPerAgent    int    `yaml:"max_content_per_agent"`
	MaxTotalPromptContent int    `yaml:"max_total_prompt_content"`
	// MaxExcerptLength bounds per-agent excerpts in the fallback summary.
	MaxExcerptLength int `yaml:"max_excerpt_length"`
}

// Defaults returns the built-in configuration. Loaded YAML is merged on
// top of this.
func Defaults() *Config {
	return &Config{
		AgentsDir:          "./agents",
		SkillsDir:          "./skills",
		OutputDir:          "./reviews",
		DefaultModel:       "claude-sonnet-4-5",
		TimeoutMinutes:     20,
		IdleTimeoutMinutes: 5,
		MaxRetries:         2,
		Parallelism:        3,
		Passes:             1,
		Breaker: breaker.Settings{
			FailureThreshold: breaker.DefaultFailureThreshold,
			ResetTimeout:     breaker.DefaultResetTimeout,
		},
		Collector: CollectorConfig{
			MaxAccumulatedSize: 4 * 1024 * 1024,
			InitialCapacity:    16 * 1024,
		},
		Source: SourceConfig{
			MaxFileBytes:  256 * 1024,
			MaxTotalBytes: 2 * 1024 * 1024,
			Extensions: []string{
				".go", ".java", ".kt", ".py", ".rb", ".js", ".ts", ".tsx",
				".c", ".h", ".cpp", ".rs", ".sql", ".sh", ".yaml", ".yml",
				".toml", ".md",
			},
			ExcludeDirs: []string{".git", "node_modules", "vendor", "dist", "build", "target"},
		},
		Summary: SummaryConfig{
			TimeoutMinutes:        5,
			MaxAttempts:           3,
			MaxContentPerAgent:    12000,
			MaxTotalPromptContent: 60000,
			MaxExcerptLength:      300,
		},
	}
}

// Timeout returns the hard per-pass timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// IdleTimeout returns the per-session idle budget.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// SummaryTimeout returns the executive summary generation budget.
func (c *Config) SummaryTimeout() time.Duration {
	return time.Duration(c.Summary.TimeoutMinutes) * time.Minute
}

// Validate checks invariants that the loader cannot default away.
func (c *Config) Validate() error {
	var errs []error
	if c.TimeoutMinutes <= 0 {
		errs = append(errs, fmt.Errorf("timeout_minutes must be positive, got %d", c.TimeoutMinutes))
	}
	if c.IdleTimeoutMinutes <= 0 {
		errs = append(errs, fmt.Errorf("idle_timeout_minutes must be positive, got %d", c.IdleTimeoutMinutes))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("parallelism must be positive, got %d", c.Parallelism))
	}
	if c.Passes <= 0 {
		errs = append(errs, fmt.Errorf("passes must be positive, got %d", c.Passes))
	}
	if c.Summary.MaxTotalPromptContent < c.Summary.MaxContentPerAgent {
		errs = append(errs, fmt.Errorf(
			"summary.max_total_prompt_content (%d) must be >= summary.max_content_per_agent (%d)",
			c.Summary.MaxTotalPromptContent, c.Summary.MaxContentPerAgent))
	}
	for id, srv := range c.MCPServers {
		if err := srv.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mcp server %q: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errorsJoin(errs))
	}
	return nil
}

func errorsJoin(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, err := range errs[1:] {
		msg += "; " + err.Error()
	}
	return fmt.Errorf("%s", msg)
}
