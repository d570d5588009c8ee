package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/agent/prompt"
	"github.com/codeready-toolchain/revue/pkg/config"
)

// SourceCollector collects the reviewable files of a local directory
// into one payload. Implemented by pkg/source; stubbed in tests.
type SourceCollector interface {
	Collect(ctx context.Context, dir string) (string, error)
}

// ResolvedTarget is the per-pass triple the runner needs: the rendered
// instruction, the local source slot (nil for remote targets), and the
// remote-tool map (nil for local targets).
type ResolvedTarget struct {
	Instruction   string
	SourceContent *string
	MCPServers    map[string]config.MCPServerConfig
}

// TargetResolver produces ResolvedTargets. The source payload is
// computed at most once per orchestration: the first local resolution
// collects it and fires OnSourceComputed so the orchestrator installs
// it into the shared context cache.
type TargetResolver struct {
	Files            SourceCollector
	OnSourceComputed func(string)
	Logger           *slog.Logger
}

// Resolve renders the instruction and the per-target extras for one
// pass. For local targets only pass 1 carries the source payload;
// later passes receive an empty source slot.
func (r *TargetResolver) Resolve(
	ctx context.Context,
	cfg agent.AgentConfig,
	rc *agent.ReviewContext,
	target agent.ReviewTarget,
	pass int,
) (*ResolvedTarget, error) {
	instruction, err := prompt.BuildInstruction(cfg, target)
	if err != nil {
		return nil, err
	}

	if !target.IsLocal() {
		return &ResolvedTarget{
			Instruction: instruction,
			MCPServers:  rc.MCPServers(),
		}, nil
	}

	if pass > 1 {
		empty := ""
		return &ResolvedTarget{Instruction: instruction, SourceContent: &empty}, nil
	}

	content, ok := rc.SourceContent()
	if !ok {
		if r.Files == nil {
			return nil, fmt.Errorf("local target %s requires a source collector", target.Directory())
		}
		content, err = r.Files.Collect(ctx, target.Directory())
		if err != nil {
			return nil, fmt.Errorf("failed to collect source from %s: %w", target.Directory(), err)
		}
		if r.Logger != nil {
			r.Logger.Info("Collected local source payload",
				"directory", target.Directory(), "bytes", len(content))
		}
		if r.OnSourceComputed != nil {
			r.OnSourceComputed(content)
		}
	}
	return &ResolvedTarget{Instruction: instruction, SourceContent: &content}, nil
}
