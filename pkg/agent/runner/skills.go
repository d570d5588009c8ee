package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/breaker"
	"github.com/codeready-toolchain/revue/pkg/session"
)

// MaxSkillContentBytes is the threshold above which a skill document is
// compressed before it is rendered into a system prompt.
const MaxSkillContentBytes = 8192

const skillCompressionSystemPrompt = "You condense skill documents for code-review agents. Preserve every actionable instruction and checklist item; drop examples and prose that do not change reviewer behavior. Respond with the condensed document only."

// CompressSkills bounds oversized skill documents. Compression goes
// through the session client guarded by the skill circuit breaker; when
// the breaker is open or the call fails, the document is truncated
// deterministically instead. Agents without oversized skills pass
// through untouched.
func CompressSkills(ctx context.Context, rc *agent.ReviewContext, agents []agent.AgentConfig, logger *slog.Logger) []agent.AgentConfig {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]agent.AgentConfig, len(agents))
	for i, cfg := range agents {
		out[i] = cfg
		needsWork := false
		for _, s := range cfg.Skills {
			if len(s.Content) > MaxSkillContentBytes {
				needsWork = true
				break
			}
		}
		if !needsWork {
			continue
		}
		skills := make([]agent.Skill, len(cfg.Skills))
		copy(skills, cfg.Skills)
		for j, s := range skills {
			if len(s.Content) <= MaxSkillContentBytes {
				continue
			}
			skills[j].Content = compressSkill(ctx, rc, cfg.Model, s, logger)
		}
		out[i].Skills = skills
	}
	return out
}

func compressSkill(ctx context.Context, rc *agent.ReviewContext, model string, s agent.Skill, logger *slog.Logger) string {
	b := breaker.Get(breaker.PathSkill)
	if !b.Allow() {
		logger.Warn("Skill circuit breaker is open, truncating skill document",
			"skill", s.Name, "bytes", len(s.Content))
		return truncateSkill(s.Content)
	}

	condensed, err := requestCompression(ctx, rc, model, s)
	if err != nil || strings.TrimSpace(condensed) == "" {
		b.OnFailure()
		logger.Warn("Skill compression failed, truncating skill document",
			"skill", s.Name, "error", err)
		return truncateSkill(s.Content)
	}
	b.OnSuccess()
	logger.Info("Compressed skill document",
		"skill", s.Name, "from_bytes", len(s.Content), "to_bytes", len(condensed))
	return condensed
}

func requestCompression(ctx context.Context, rc *agent.ReviewContext, model string, s agent.Skill) (string, error) {
	sess, err := rc.Client.CreateSession(ctx, session.Config{
		Model:            model,
		SystemPromptMode: session.SystemPromptReplace,
		SystemPrompt:     skillCompressionSystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create skill compression session: %w", err)
	}
	defer sess.Close() //nolint:errcheck

	sender := session.NewMessageSender(rc.Scheduler, rc.Tuning, rc.Clock, slog.Default())
	prompt := fmt.Sprintf("Condense the following skill document to under %d characters:\n\n%s", MaxSkillContentBytes, s.Content)
	return sender.Send(ctx, sess, "skill:"+s.Name, prompt, rc.Timeout, rc.IdleTimeout)
}

// truncateSkill is the deterministic fallback: cut at the cap on a line
// boundary and mark the cut.
func truncateSkill(content string) string {
	if len(content) <= MaxSkillContentBytes {
		return content
	}
	cut := content[:MaxSkillContentBytes]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "\n\n(skill document truncated)"
}
