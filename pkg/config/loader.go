package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// TemplateDirEnv overrides the report template directory when set.
const TemplateDirEnv = "REVUE_TEMPLATE_DIR"

// Load reads revue.yaml from dir, merges it over the built-in defaults,
// expands environment placeholders, and validates the result. A missing
// file yields the defaults unchanged.
func Load(dir string) (*Config, error) {
	cfg := Defaults()

	path := filepath.Join(dir, "revue.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No revue.yaml found, using built-in defaults", "path", path)
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Loaded values win over defaults; zero values fall through.
	if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	expandEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Loaded configuration",
		"path", path,
		"agents_dir", cfg.AgentsDir,
		"parallelism", cfg.Parallelism,
		"passes", cfg.Passes,
		"mcp_servers", len(cfg.MCPServers))
	return cfg, nil
}

// expandEnv resolves ${VAR} references in string fields that commonly
// carry secrets or machine-specific paths.
func expandEnv(cfg *Config) {
	cfg.AgentsDir = os.ExpandEnv(cfg.AgentsDir)
	cfg.SkillsDir = os.ExpandEnv(cfg.SkillsDir)
	cfg.OutputDir = os.ExpandEnv(cfg.OutputDir)
	for id, srv := range cfg.MCPServers {
		srv.Command = os.ExpandEnv(srv.Command)
		srv.URL = os.ExpandEnv(srv.URL)
		srv.BearerToken = os.ExpandEnv(srv.BearerToken)
		for k, v := range srv.Env {
			srv.Env[k] = os.ExpandEnv(v)
		}
		cfg.MCPServers[id] = srv
	}
}

// TemplateDir resolves the report template directory: the env override
// when set, otherwise empty (embedded templates).
func TemplateDir() string {
	return os.Getenv(TemplateDirEnv)
}
