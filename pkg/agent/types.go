// Package agent defines the review agent model: immutable agent
// descriptors, review targets, the shared review context, per-pass
// results, and the retry executor that wraps every pass attempt.
package agent

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/revue/pkg/config"
)

// Skill is one named capability attached to an agent, rendered into its
// system prompt.
type Skill struct {
	Name        string
	Description string
	Content     string
}

// AgentConfig is the immutable descriptor of one review agent. Value
// semantics: WithModel returns a modified copy, instances are never
// mutated after load.
type AgentConfig struct {
	// Name uniquely identifies the agent. Required.
	Name        string
	DisplayName string
	Model       string
	// SystemPrompt is the agent's role description. Required.
	SystemPrompt string
	// InstructionTemplate may reference ${repository}, ${displayName},
	// ${name} and ${focusAreas}. Required.
	InstructionTemplate string
	// OutputFormat starts with a level-2 heading (normalized at load).
	OutputFormat string
	FocusAreas   []string
	Skills       []Skill
}

// FromDefinition converts a parsed definition file into the runtime
// descriptor, applying the configured default model.
func FromDefinition(def config.AgentDefinition, defaultModel string) AgentConfig {
	model := def.Model
	if model == "" {
		model = defaultModel
	}
	skills := make([]Skill, 0, len(def.Skills))
	for _, s := range def.Skills {
		skills = append(skills, Skill{Name: s.Name, Description: s.Description, Content: s.Content})
	}
	return AgentConfig{
		Name:                def.Name,
		DisplayName:         def.DisplayName,
		Model:               model,
		SystemPrompt:        def.Role,
		InstructionTemplate: def.Instruction,
		OutputFormat:        def.OutputFormat,
		FocusAreas:          def.FocusAreas,
		Skills:              skills,
	}
}

// Usable checks the invariants a config must satisfy before it can
// drive a review. A violation is a configuration error: the runner
// fails the agent without touching the transport.
func (c AgentConfig) Usable() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("agent name must not be blank")
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		return fmt.Errorf("agent %s: system prompt must not be blank", c.Name)
	}
	if strings.TrimSpace(c.InstructionTemplate) == "" {
		return fmt.Errorf("agent %s: instruction template must not be blank", c.Name)
	}
	return nil
}

// WithModel returns a copy pinned to the given model.
func (c AgentConfig) WithModel(model string) AgentConfig {
	c.Model = model
	return c
}

// EffectiveDisplayName falls back to the name when no display name is
// configured.
func (c AgentConfig) EffectiveDisplayName() string {
	if strings.TrimSpace(c.DisplayName) != "" {
		return c.DisplayName
	}
	return c.Name
}
