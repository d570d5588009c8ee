package summary

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/breaker"
	"github.com/codeready-toolchain/revue/pkg/config"
	"github.com/codeready-toolchain/revue/pkg/session"
)

const summarySystemPrompt = "You are an engineering lead writing the executive summary of a multi-agent code review. Summarize the most important findings, themes that recur across agents, and recommended next steps, in Markdown. Base the summary strictly on the review results provided."

const summaryUserPromptTemplate = `Write an executive summary for the code review of {{repository}}.

Review results by agent:

{{results}}`

const truncationSuffix = "... (truncated for summary)"

// Generator produces the executive-summary narrative. Generation is
// best-effort: every failure path falls back to the deterministic
// template summary.
type Generator struct {
	client    session.Client
	scheduler *session.Scheduler
	tuning    config.CollectorConfig
	clock     session.Clock
	cfg       config.SummaryConfig
	model     string
	breaker   *breaker.Breaker
	logger    *slog.Logger

	backoffBase time.Duration
}

// NewGenerator creates a generator. defaultModel applies when the
// summary configuration does not pin its own model.
func NewGenerator(
	client session.Client,
	scheduler *session.Scheduler,
	tuning config.CollectorConfig,
	clock session.Clock,
	cfg config.SummaryConfig,
	defaultModel string,
	logger *slog.Logger,
) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Generator{
		client:      client,
		scheduler:   scheduler,
		tuning:      tuning,
		clock:       clock,
		cfg:         cfg,
		model:       model,
		breaker:     breaker.Get(breaker.PathSummary),
		logger:      logger,
		backoffBase: time.Second,
	}
}

// Generate returns the executive-summary narrative for the merged
// results. It never fails: when the AI path is exhausted or the
// breaker denies it, the deterministic fallback is returned.
func (g *Generator) Generate(ctx context.Context, repository string, results []agent.ReviewResult) string {
	prompt := g.buildPrompt(repository, results)
	attempts := g.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if !g.breaker.Allow() {
			g.logger.Warn("Summary circuit breaker is open, using fallback summary")
			return FallbackSummary(repository, results, g.cfg.MaxExcerptLength)
		}

		content, err := g.requestSummary(ctx, prompt)
		if err == nil && strings.TrimSpace(content) != "" {
			g.breaker.OnSuccess()
			return content
		}
		g.breaker.OnFailure()
		g.logger.Warn("Summary generation attempt failed",
			"attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt < attempts {
			if !sleepWithJitter(ctx, g.backoffBase<<(attempt-1)) {
				break
			}
		}
	}
	return FallbackSummary(repository, results, g.cfg.MaxExcerptLength)
}

func (g *Generator) requestSummary(ctx context.Context, prompt string) (string, error) {
	sess, err := g.client.CreateSession(ctx, session.Config{
		Model:            g.model,
		SystemPromptMode: session.SystemPromptReplace,
		SystemPrompt:     summarySystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create summary session: %w", err)
	}
	defer sess.Close() //nolint:errcheck

	timeout := time.Duration(g.cfg.TimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	sender := session.NewMessageSender(g.scheduler, g.tuning, g.clock, g.logger)
	return sender.Send(ctx, sess, "summary", prompt, timeout, timeout)
}

// buildPrompt renders the user prompt. Successful results are clipped
// per agent and by a total budget; once the budget is spent, remaining
// agents contribute nothing.
func (g *Generator) buildPrompt(repository string, results []agent.ReviewResult) string {
	var entries []string
	used := 0
	for _, r := range results {
		name := r.Agent.EffectiveDisplayName()
		if !r.Success {
			entries = append(entries, fmt.Sprintf("## %s\n\nReview failed: %s", name, r.ErrorMessage))
			continue
		}
		if g.cfg.MaxTotalPromptContent > 0 && used >= g.cfg.MaxTotalPromptContent {
			continue
		}
		content := r.Content
		budget := len(content)
		if g.cfg.MaxContentPerAgent > 0 && budget > g.cfg.MaxContentPerAgent {
			budget = g.cfg.MaxContentPerAgent
		}
		if g.cfg.MaxTotalPromptContent > 0 && budget > g.cfg.MaxTotalPromptContent-used {
			budget = g.cfg.MaxTotalPromptContent - used
		}
		if budget < len(content) {
			// Back up to a rune boundary; finding bodies carry multi-byte
			// field headers and a byte-offset cut would emit invalid UTF-8.
			for budget > 0 && !utf8.RuneStart(content[budget]) {
				budget--
			}
			content = content[:budget] + truncationSuffix
		}
		used += budget
		entries = append(entries, fmt.Sprintf("## %s\n\n%s", name, content))
	}

	return strings.NewReplacer(
		"{{repository}}", repository,
		"{{results}}", strings.Join(entries, "\n\n"),
	).Replace(summaryUserPromptTemplate)
}

// sleepWithJitter blocks for a uniformly random fraction of backoff
// (full jitter). Returns false when the context is cancelled first.
func sleepWithJitter(ctx context.Context, backoff time.Duration) bool {
	d := rand.N(backoff)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// FallbackSummary is the deterministic summary: a status table with one
// row per agent, then per-agent excerpt blocks.
func FallbackSummary(repository string, results []agent.ReviewResult, maxExcerpt int) string {
	if maxExcerpt <= 0 {
		maxExcerpt = 300
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Automated summary for %s. The AI summary was unavailable; the table below is generated from the raw results.\n\n", repository)
	b.WriteString("| Agent | Status | Excerpt |\n")
	b.WriteString("|-------|--------|--------|\n")
	for _, r := range results {
		name := r.Agent.EffectiveDisplayName()
		if r.Success {
			fmt.Fprintf(&b, "| %s | OK | %s |\n", name, excerpt(r.Content, maxExcerpt))
		} else {
			fmt.Fprintf(&b, "| %s | FAILED | %s |\n", name, excerpt(r.ErrorMessage, maxExcerpt))
		}
	}

	for _, r := range results {
		name := r.Agent.EffectiveDisplayName()
		if r.Success {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", name, excerpt(r.Content, maxExcerpt))
		} else {
			fmt.Fprintf(&b, "\n### %s\n\nReview failed: %s\n", name, excerpt(r.ErrorMessage, maxExcerpt))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// excerpt collapses whitespace and bounds the result to maxLen runes.
func excerpt(s string, maxLen int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	runes := []rune(collapsed)
	if len(runes) <= maxLen {
		return collapsed
	}
	return strings.TrimRight(string(runes[:maxLen]), " ") + "..."
}
