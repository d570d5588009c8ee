package agent

import "strings"

// reasoningCapableModelPrefixes lists model families that accept a
// reasoning-effort setting. Models outside this table have the setting
// omitted from their session configuration.
var reasoningCapableModelPrefixes = []string{
	"claude-opus-4",
	"claude-sonnet-4",
	"claude-haiku-4",
	"o3",
	"o4",
	"gpt-5",
}

var validReasoningEfforts = map[string]bool{
	"low":    true,
	"medium": true,
	"high":   true,
}

// ResolveReasoningEffort returns the effort level to configure for the
// given model, or empty when the model does not support it or the
// requested level is invalid.
func ResolveReasoningEffort(model, requested string) string {
	effort := strings.ToLower(strings.TrimSpace(requested))
	if effort == "" || !validReasoningEfforts[effort] {
		return ""
	}
	for _, prefix := range reasoningCapableModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return effort
		}
	}
	return ""
}
