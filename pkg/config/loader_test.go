package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSystemConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "revue.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := writeSystemConfig(t, `
parallelism: 5
default_model: claude-opus-4-1
summary:
  max_attempts: 1
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	// Loaded values win.
	assert.Equal(t, 5, cfg.Parallelism)
	assert.Equal(t, "claude-opus-4-1", cfg.DefaultModel)
	assert.Equal(t, 1, cfg.Summary.MaxAttempts)
	// Untouched fields keep their defaults.
	assert.Equal(t, 20, cfg.TimeoutMinutes)
	assert.Equal(t, 12000, cfg.Summary.MaxContentPerAgent)
}

func TestLoad_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("REVUE_TEST_HOME", "/srv/revue")
	t.Setenv("REVUE_TEST_MCP_TOKEN", "tok-abc")
	dir := writeSystemConfig(t, `
output_dir: ${REVUE_TEST_HOME}/reviews
mcp_servers:
  docs:
    type: http
    url: https://mcp.example.com
    bearer_token: ${REVUE_TEST_MCP_TOKEN}
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/revue/reviews", cfg.OutputDir)
	assert.Equal(t, "tok-abc", cfg.MCPServers["docs"].BearerToken)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	dir := writeSystemConfig(t, "parallelism: [not a number")
	_, err := Load(dir)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	dir := writeSystemConfig(t, "max_retries: -3")
	_, err := Load(dir)
	assert.ErrorContains(t, err, "max_retries")
}

func TestTemplateDir(t *testing.T) {
	t.Setenv(TemplateDirEnv, "")
	assert.Empty(t, TemplateDir())
	t.Setenv(TemplateDirEnv, "/etc/revue/templates")
	assert.Equal(t, "/etc/revue/templates", TemplateDir())
}
