// Package summary turns merged review results into the executive
// summary artifacts: a deterministic findings roll-up grouped by
// priority, and an AI-generated narrative with a template fallback.
package summary

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/revue/pkg/agent"
	"github.com/codeready-toolchain/revue/pkg/merge"
)

// priorityOrder fixes the roll-up grouping order.
var priorityOrder = []string{"Critical", "High", "Medium", "Low", "Unknown"}

var (
	titleLineRe    = regexp.MustCompile(`^###\s+\[?\d+\]?\.\s+(.+?)\s*$`)
	priorityLineRe = regexp.MustCompile(`(?i)^\|\s*\*{0,2}Priority\*{0,2}\s*\|\s*(Critical|High|Medium|Low)\s*\|`)
)

type extractedFinding struct {
	title    string
	priority string
	agent    string
}

// BuildFindingsSummary renders the deterministic Markdown roll-up of
// all findings across the successful merged results, grouped by
// priority. Returns an empty string when no findings were extracted.
func BuildFindingsSummary(results []agent.ReviewResult) string {
	var findings []extractedFinding
	for _, r := range results {
		if !r.Success {
			continue
		}
		findings = append(findings, extractFindings(r)...)
	}
	if len(findings) == 0 {
		return ""
	}

	grouped := make(map[string][]extractedFinding, len(priorityOrder))
	for _, f := range findings {
		grouped[f.priority] = append(grouped[f.priority], f)
	}

	var sections []string
	for _, priority := range priorityOrder {
		group := grouped[priority]
		if len(group) == 0 {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "#### %s (%d)\n", priority, len(group))
		for _, f := range group {
			fmt.Fprintf(&b, "- **%s** — %s\n", f.title, f.agent)
		}
		sections = append(sections, strings.TrimRight(b.String(), " \t\n"))
	}
	return strings.Join(sections, "\n\n")
}

// extractFindings pairs the N-th finding title with the N-th priority
// cell of one result body. A body with fewer priorities than titles
// pads with Unknown; priorities without titles synthesize Finding N
// labels. The no-findings marker empties the result.
func extractFindings(r agent.ReviewResult) []extractedFinding {
	if strings.Contains(r.Content, merge.NoFindingsMarker) {
		return nil
	}

	var titles, priorities []string
	for _, line := range strings.Split(r.Content, "\n") {
		line = strings.TrimSpace(line)
		if m := titleLineRe.FindStringSubmatch(line); m != nil {
			titles = append(titles, m[1])
			continue
		}
		if m := priorityLineRe.FindStringSubmatch(line); m != nil {
			priorities = append(priorities, normalizePriority(m[1]))
		}
	}

	n := max(len(titles), len(priorities))
	if n == 0 {
		return nil
	}
	display := r.Agent.EffectiveDisplayName()
	findings := make([]extractedFinding, 0, n)
	for i := 0; i < n; i++ {
		f := extractedFinding{agent: display, priority: "Unknown"}
		if i < len(titles) {
			f.title = titles[i]
		} else {
			f.title = fmt.Sprintf("Finding %d", i+1)
		}
		if i < len(priorities) {
			f.priority = priorities[i]
		}
		findings = append(findings, f)
	}
	return findings
}

func normalizePriority(p string) string {
	switch strings.ToLower(p) {
	case "critical":
		return "Critical"
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	default:
		return "Unknown"
	}
}
