// Package orchestrator owns one review run: it builds the shared
// review context, fans (agent × pass) tasks out to a bounded worker
// pool, and merges the per-pass results into one result per agent.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/agent/runner"
	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/merge"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// Request describes one review run.
type Request struct {
	Agents []agent.AgentConfig
	Target agent.ReviewTarget

	// Token authorizes MCP servers that declare a token slot. Only used
	// for remote targets.
	Token string

	// Overrides; zero values fall back to the system configuration.
	Parallelism     int
	Passes          int
	ReasoningEffort string
}

// Orchestrator runs reviews. One instance serves many runs; each run
// gets its own scheduler and caches.
type Orchestrator struct {
	cfg    *config.Config
	client session.Client
	files  runner.SourceCollector
	logger *slog.Logger
}

// New creates an orchestrator. files may be nil when only remote
// targets will be reviewed.
func New(cfg *config.Config, client session.Client, files runner.SourceCollector, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, client: client, files: files, logger: logger}
}

// Run executes every (agent, pass) combination and returns one merged
// result per agent, in first-seen agent order. Per-agent failures are
// recorded in the results, never returned as errors; an error means the
// run could not start at all.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]agent.ReviewResult, error) {
	if len(req.Agents) == 0 {
		return nil, fmt.Errorf("at least one agent is required")
	}
	parallelism := req.Parallelism
	if parallelism <= 0 {
		parallelism = o.cfg.Parallelism
	}
	passes := req.Passes
	if passes <= 0 {
		passes = o.cfg.Passes
	}
	effort := req.ReasoningEffort
	if effort == "" {
		effort = o.cfg.ReasoningEffort
	}

	scheduler := session.NewScheduler()
	defer scheduler.Close()

	rc := &agent.ReviewContext{
		Client:             o.client,
		Timeout:            o.cfg.Timeout(),
		IdleTimeout:        o.cfg.IdleTimeout(),
		MaxRetries:         o.cfg.MaxRetries,
		ReasoningEffort:    effort,
		CustomInstructions: o.cfg.CustomInstructions,
		OutputConstraints:  o.cfg.OutputConstraints,
		Scheduler:          scheduler,
		Tuning:             o.cfg.Collector,
		Source:             o.cfg.Source,
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	if !req.Target.IsLocal() {
		rc.InstallMCPServers(config.ServersWithToken(o.cfg.MCPServers, req.Token))
	}

	agents := runner.CompressSkills(ctx, rc, req.Agents, o.logger)

	resolver := &runner.TargetResolver{
		Files:            o.files,
		OnSourceComputed: rc.InstallSourceContent,
		Logger:           o.logger,
	}
	r := runner.New(rc, resolver, o.logger)

	o.logger.Info("Starting review run",
		"target", req.Target.DisplayName(),
		"agents", len(agents),
		"passes", passes,
		"parallelism", parallelism)

	results := o.fanOut(ctx, r, agents, req.Target, passes, parallelism)
	return merge.MergeByAgent(results), nil
}

type reviewTask struct {
	idx  int
	cfg  agent.AgentConfig
	pass int
}

// fanOut runs every (agent, pass) task on a pool of parallelism
// workers. Results keep submission order regardless of completion
// order so the merger's first-seen tie-break is deterministic.
func (o *Orchestrator) fanOut(
	ctx context.Context,
	r *runner.Runner,
	agents []agent.AgentConfig,
	target agent.ReviewTarget,
	passes, parallelism int,
) []agent.ReviewResult {
	tasks := make([]reviewTask, 0, len(agents)*passes)
	for _, cfg := range agents {
		for pass := 1; pass <= passes; pass++ {
			tasks = append(tasks, reviewTask{idx: len(tasks), cfg: cfg, pass: pass})
		}
	}

	taskCh := make(chan reviewTask)
	results := make([]agent.ReviewResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				results[task.idx] = r.RunPass(ctx, task.cfg, target, task.pass)
			}
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)
	wg.Wait()
	return results
}
