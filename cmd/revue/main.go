// Command revue is a multi-agent code review orchestrator. It loads
// agent definitions, fans reviews out across LLM sessions, merges
// findings across passes, and writes per-agent reports plus an
// executive summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/breaker"
	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/llm"
	"github.com/codeready-toolchain/revue/pkg/mcp"
	"github.com/codeready-toolchain/revue/pkg/orchestrator"
	"github.com/codeready-toolchain/revue/pkg/report"
	"github.com/codeready-toolchain/revue/pkg/session"
	"github.com/codeready-toolchain/revue/pkg/source"
	"github.com/codeready-toolchain/revue/pkg/summary"
	"github.com/codeready-toolchain/revue/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("REVUE_CONFIG_DIR", "."), "Path to configuration directory")
	repo := flag.String("repo", "", "Remote repository identifier (owner/name)")
	dir := flag.String("dir", "", "Local directory to review")
	agentNames := flag.String("agents", "", "Comma-separated agent names (default: all)")
	passes := flag.Int("passes", 0, "Review passes per agent (default from config)")
	parallelism := flag.Int("parallelism", 0, "Concurrent review sessions (default from config)")
	effort := flag.String("reasoning-effort", "", "Reasoning effort: low, medium, high")
	preflightOnly := flag.Bool("preflight", false, "Only check MCP server connectivity and exit")
	flag.Parse()

	// Load .env from the config directory before anything reads the
	// environment.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file loaded", "path", envPath, "error", err)
	}

	slog.Info("Starting revue",
		"version", version.Version,
		"config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir, *repo, *dir, *agentNames, *passes, *parallelism, *effort, *preflightOnly); err != nil {
		slog.Error("Review run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir, repo, dir, agentNames string, passes, parallelism int, effort string, preflightOnly bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	breaker.Configure(cfg.Breaker)

	if preflightOnly {
		return runPreflight(ctx, cfg)
	}

	target, err := resolveTarget(repo, dir)
	if err != nil {
		return err
	}

	agents, err := loadAgents(cfg, agentNames)
	if err != nil {
		return err
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	client, err := llm.NewSessionClient(apiKey, llm.Options{}, nil)
	if err != nil {
		return err
	}

	files := source.NewDirectoryCollector(cfg.Source, nil)
	o := orchestrator.New(cfg, client, files, nil)

	results, err := o.Run(ctx, orchestrator.Request{
		Agents:          agents,
		Target:          target,
		Token:           os.Getenv("REVUE_REVIEW_TOKEN"),
		Parallelism:     parallelism,
		Passes:          passes,
		ReasoningEffort: effort,
	})
	if err != nil {
		return err
	}

	scheduler := session.NewScheduler()
	defer scheduler.Close()
	gen := summary.NewGenerator(client, scheduler, cfg.Collector, nil, cfg.Summary, cfg.DefaultModel, nil)
	summaryContent := gen.Generate(ctx, target.DisplayName(), results)
	findingsSummary := summary.BuildFindingsSummary(results)

	writer := report.NewWriter(cfg.OutputDir, nil, nil)
	summaryPath, err := writer.Write(target.DisplayName(), results, summaryContent, findingsSummary)
	if err != nil {
		return err
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	slog.Info("Review run complete",
		"agents", len(results),
		"succeeded", succeeded,
		"failed", len(results)-succeeded,
		"summary", summaryPath)
	if succeeded == 0 {
		return fmt.Errorf("all %d agents failed", len(results))
	}
	return nil
}

func resolveTarget(repo, dir string) (agent.ReviewTarget, error) {
	switch {
	case repo != "" && dir != "":
		return agent.ReviewTarget{}, fmt.Errorf("-repo and -dir are mutually exclusive")
	case repo != "":
		return agent.RemoteTarget(repo), nil
	case dir != "":
		abs, err := filepath.Abs(dir)
		if err != nil {
			return agent.ReviewTarget{}, fmt.Errorf("failed to resolve directory %s: %w", dir, err)
		}
		return agent.LocalTarget(abs), nil
	default:
		return agent.ReviewTarget{}, fmt.Errorf("one of -repo or -dir is required")
	}
}

func loadAgents(cfg *config.Config, names string) ([]agent.AgentConfig, error) {
	defs, err := config.LoadAgentDefinitions(cfg.AgentsDir, cfg.SkillsDir, cfg.DefaultOutputFormat)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no agent definitions found in %s", cfg.AgentsDir)
	}

	wanted := map[string]bool{}
	if names != "" {
		for _, n := range strings.Split(names, ",") {
			wanted[strings.TrimSpace(n)] = true
		}
	}

	agents := make([]agent.AgentConfig, 0, len(defs))
	for _, def := range defs {
		if len(wanted) > 0 && !wanted[def.Name] {
			continue
		}
		agents = append(agents, agent.FromDefinition(def, cfg.DefaultModel))
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents matched %q", names)
	}
	return agents, nil
}

func runPreflight(ctx context.Context, cfg *config.Config) error {
	if len(cfg.MCPServers) == 0 {
		slog.Info("No MCP servers configured")
		return nil
	}
	failed := 0
	for _, r := range mcp.Preflight(ctx, cfg.MCPServers, nil) {
		if r.OK {
			fmt.Printf("%s: ok (%d tools)\n", r.Server, len(r.Tools))
		} else {
			fmt.Printf("%s: FAILED: %s\n", r.Server, r.Error)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d MCP servers failed preflight", failed)
	}
	return nil
}
