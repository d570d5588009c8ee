package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "./agents", cfg.AgentsDir)
	assert.Equal(t, "./reviews", cfg.OutputDir)
	assert.Equal(t, "claude-sonnet-4-5", cfg.DefaultModel)
	assert.Equal(t, 20*time.Minute, cfg.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 5*time.Minute, cfg.SummaryTimeout())
	assert.Equal(t, 3, cfg.Parallelism)
	assert.Equal(t, 1, cfg.Passes)
	assert.Contains(t, cfg.Source.Extensions, ".go")
	assert.Contains(t, cfg.Source.ExcludeDirs, "node_modules")

	require.NoError(t, cfg.Validate())
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Defaults()
	cfg.TimeoutMinutes = 0
	cfg.Parallelism = -1
	cfg.Passes = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "timeout_minutes")
	assert.ErrorContains(t, err, "parallelism")
	assert.ErrorContains(t, err, "passes")
}

func TestValidate_SummaryBudgets(t *testing.T) {
	cfg := Defaults()
	cfg.Summary.MaxContentPerAgent = 1000
	cfg.Summary.MaxTotalPromptContent = 500

	err := cfg.Validate()
	assert.ErrorContains(t, err, "max_total_prompt_content")
}

func TestValidate_MCPServers(t *testing.T) {
	cfg := Defaults()
	cfg.MCPServers = map[string]MCPServerConfig{
		"github": {Type: TransportTypeStdio},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `mcp server "github"`)
	assert.ErrorContains(t, err, "requires command")
}
