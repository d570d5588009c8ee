package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/agent/prompt"
	"github.com/codeready-toolchain/revue/pkg/breaker"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// Empty-response failure messages. The remote variant hints at the most
// common cause observed with tool-enabled sessions.
const (
	emptyResponseWithTools    = "agent returned no content; the model may have timed out during remote tool calls"
	emptyResponseWithoutTools = "agent returned no content"
)

// Runner executes reviews for one orchestration. Safe for concurrent
// use: all per-pass state is local.
type Runner struct {
	rc       *agent.ReviewContext
	resolver *TargetResolver
	breaker  *breaker.Breaker
	sender   *session.MessageSender
	logger   *slog.Logger
}

// New creates a runner bound to the shared review context. The review
// call path is guarded by the process-wide review breaker.
func New(rc *agent.ReviewContext, resolver *TargetResolver, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		rc:       rc,
		resolver: resolver,
		breaker:  breaker.Get(breaker.PathReview),
		sender:   session.NewMessageSender(rc.Scheduler, rc.Tuning, rc.Clock, logger),
		logger:   logger,
	}
}

// RunPass executes one retried pass for one agent. The result is
// always a ReviewResult; the runner never propagates errors upward.
func (r *Runner) RunPass(ctx context.Context, cfg agent.AgentConfig, target agent.ReviewTarget, pass int) agent.ReviewResult {
	repository := target.DisplayName()

	if err := cfg.Usable(); err != nil {
		// Configuration errors are fatal to the agent and never touch the
		// transport.
		return agent.FailureResult(cfg, repository, err.Error()).WithPass(pass)
	}

	retry := agent.NewRetryExecutor(r.rc.MaxRetries, r.logger)
	result := retry.Execute(ctx,
		func(attemptNo int) (agent.ReviewResult, error) {
			return r.attemptPass(ctx, cfg, target, pass)
		},
		func(err error) agent.ReviewResult {
			return agent.FailureResult(cfg, repository, err.Error())
		},
	)
	return result.WithPass(pass)
}

// attemptPass is one un-retried attempt: resolve, breaker check, open a
// session, drive the message flow.
func (r *Runner) attemptPass(ctx context.Context, cfg agent.AgentConfig, target agent.ReviewTarget, pass int) (agent.ReviewResult, error) {
	repository := target.DisplayName()
	logger := r.logger.With("agent", cfg.Name, "repository", repository, "pass", pass)

	resolved, err := r.resolver.Resolve(ctx, cfg, r.rc, target, pass)
	if err != nil {
		return agent.ReviewResult{}, err
	}

	if !r.breaker.Allow() {
		logger.Warn("Review circuit breaker is open, skipping transport call")
		return agent.FailureResult(cfg, repository,
			"review circuit breaker is open; too many consecutive transport failures"), nil
	}

	systemPrompt := prompt.ApplyProjectInstructions(
		prompt.BuildSystemPrompt(cfg),
		r.rc.OutputConstraints,
		r.rc.CustomInstructions,
	)
	sessCfg := NewSessionConfig(cfg, r.rc, systemPrompt, resolved.MCPServers)

	sess, err := r.rc.Client.CreateSession(ctx, sessCfg)
	if err != nil {
		r.breaker.OnFailure()
		return agent.ReviewResult{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			logger.Debug("Failed to close session", "error", closeErr)
		}
	}()

	flow := session.NewMessageFlow(&promptSender{
		runner: r,
		sess:   sess,
		agent:  cfg.Name,
	}, logger)

	content, err := flow.Execute(ctx, resolved.Instruction, resolved.SourceContent)
	if err != nil {
		r.breaker.OnFailure()
		return agent.ReviewResult{}, err
	}

	if isBlankContent(content) {
		// The transport exchange completed; only the review content is
		// missing. An empty response is an agent failure, not a transport
		// failure, and must not hold a half-open probe in flight.
		r.breaker.OnSuccess()
		if len(resolved.MCPServers) > 0 {
			return agent.FailureResult(cfg, repository, emptyResponseWithTools), nil
		}
		return agent.FailureResult(cfg, repository, emptyResponseWithoutTools), nil
	}

	r.breaker.OnSuccess()
	logger.Info("Review pass completed", "content_bytes", len(content))
	return agent.SuccessResult(cfg, repository, content), nil
}

// promptSender adapts the MessageSender to the flow's PromptSender
// surface, binding the session and the context timeouts.
type promptSender struct {
	runner *Runner
	sess   session.Session
	agent  string
}

func (p *promptSender) Send(ctx context.Context, text string) (string, error) {
	return p.runner.sender.Send(ctx, p.sess, p.agent, text,
		p.runner.rc.Timeout, p.runner.rc.IdleTimeout)
}

func isBlankContent(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
