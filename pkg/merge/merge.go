// Package merge collapses multi-pass review results into one result per
// agent, folding near-duplicate findings across passes.
package merge

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/revue/pkg/agent"
)

// Similarity thresholds for the near-duplicate test. Frozen: changing
// them changes which findings collapse across passes.
const (
	titleSimilarityThreshold    = 0.60
	summarySimilarityThreshold  = 0.55
	locationSimilarityThreshold = 0.55
)

// aggregatedFinding accumulates one deduplicated finding across passes.
// The normalized fields and bigram sets are derived once at insertion
// and never mutated; only passNumbers grows.
type aggregatedFinding struct {
	title       string
	body        string
	passNumbers []int

	normalizedTitle    string
	normalizedPriority string
	normalizedSummary  string
	normalizedLocation string
	titleBigrams       map[string]struct{}
	summaryBigrams     map[string]struct{}
	locationBigrams    map[string]struct{}
}

func newAggregatedFinding(b findingBlock, pass int) *aggregatedFinding {
	f := &aggregatedFinding{
		title:              b.title,
		body:               b.body,
		passNumbers:        []int{pass},
		normalizedTitle:    normalizeText(b.title),
		normalizedPriority: normalizeText(b.priority),
		normalizedSummary:  normalizeText(b.summary),
		normalizedLocation: normalizeText(b.location),
	}
	f.titleBigrams = bigrams(f.normalizedTitle)
	f.summaryBigrams = bigrams(f.normalizedSummary)
	f.locationBigrams = bigrams(f.normalizedLocation)
	return f
}

func (f *aggregatedFinding) addPass(pass int) {
	for _, p := range f.passNumbers {
		if p == pass {
			return
		}
	}
	f.passNumbers = append(f.passNumbers, pass)
}

// isNearDuplicate applies the multi-signal test between an incoming
// block and an existing aggregated finding.
func (f *aggregatedFinding) isNearDuplicate(in *aggregatedFinding) bool {
	if in.normalizedPriority != "" && f.normalizedPriority != "" &&
		in.normalizedPriority != f.normalizedPriority {
		return false
	}

	titlesSimilar := jaccard(in.titleBigrams, f.titleBigrams) >= titleSimilarityThreshold
	summariesSimilar := jaccard(in.summaryBigrams, f.summaryBigrams) >= summarySimilarityThreshold

	if in.normalizedLocation != "" && f.normalizedLocation != "" {
		if jaccard(in.locationBigrams, f.locationBigrams) < locationSimilarityThreshold {
			return false
		}
		return summariesSimilar || titlesSimilar ||
			shareKeyword(in.normalizedTitle, f.normalizedTitle)
	}

	return summariesSimilar && titlesSimilar
}

// MergeByAgent collapses the results of all passes into one result per
// distinct agent name, preserving first-seen agent order. Idempotent:
// re-applying it to its own output returns the same list.
func MergeByAgent(results []agent.ReviewResult) []agent.ReviewResult {
	groups := make(map[string][]agent.ReviewResult)
	var order []string
	for _, r := range results {
		if _, seen := groups[r.Agent.Name]; !seen {
			order = append(order, r.Agent.Name)
		}
		groups[r.Agent.Name] = append(groups[r.Agent.Name], r)
	}

	merged := make([]agent.ReviewResult, 0, len(order))
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		merged = append(merged, mergeGroup(group))
	}
	return merged
}

// mergeGroup consolidates the passes of one agent.
func mergeGroup(group []agent.ReviewResult) agent.ReviewResult {
	var successes, failures []agent.ReviewResult
	for _, r := range group {
		if r.Success {
			successes = append(successes, r)
		} else {
			failures = append(failures, r)
		}
	}
	if len(successes) == 0 {
		return failures[len(failures)-1]
	}

	var findings []*aggregatedFinding
	byKey := make(map[string]*aggregatedFinding)

	for _, r := range successes {
		blocks := parseFindingBlocks(r.Content)
		if blocks == nil {
			if strings.Contains(r.Content, NoFindingsMarker) {
				continue
			}
			key := "fallback|" + normalizeText(r.Content)
			if existing, ok := byKey[key]; ok {
				existing.addPass(r.Pass)
				continue
			}
			f := newAggregatedFinding(findingBlock{body: strings.TrimSpace(r.Content)}, r.Pass)
			byKey[key] = f
			findings = append(findings, f)
			continue
		}
		for _, b := range blocks {
			incoming := newAggregatedFinding(b, r.Pass)
			key := incoming.normalizedTitle
			if existing, ok := byKey[key]; ok {
				existing.addPass(r.Pass)
				continue
			}
			if existing := probeNearDuplicate(findings, incoming); existing != nil {
				existing.addPass(r.Pass)
				continue
			}
			byKey[key] = incoming
			findings = append(findings, incoming)
		}
	}

	result := successes[0]
	result.Content = renderMergedBody(findings, failures)
	return result
}

func probeNearDuplicate(findings []*aggregatedFinding, in *aggregatedFinding) *aggregatedFinding {
	for _, f := range findings {
		if f.isNearDuplicate(in) {
			return f
		}
	}
	return nil
}

// renderMergedBody emits the consolidated Markdown: renumbered finding
// headings, a pass-provenance line for findings seen more than once,
// and a trailing note for failed passes.
func renderMergedBody(findings []*aggregatedFinding, failures []agent.ReviewResult) string {
	if len(findings) == 0 {
		return NoFindingsMarker
	}

	number := 0
	sections := make([]string, 0, len(findings)+1)
	for _, f := range findings {
		var b strings.Builder
		if f.title != "" {
			number++
			fmt.Fprintf(&b, "### %d. %s\n\n", number, f.title)
			if len(f.passNumbers) > 1 {
				fmt.Fprintf(&b, "_Detected in passes: %s_\n\n", joinPasses(f.passNumbers))
			}
			b.WriteString(stripHeadingLine(f.body))
		} else {
			// Fallback entry: unparseable content kept verbatim.
			if len(f.passNumbers) > 1 {
				fmt.Fprintf(&b, "_Detected in passes: %s_\n\n", joinPasses(f.passNumbers))
			}
			b.WriteString(f.body)
		}
		sections = append(sections, strings.TrimRight(b.String(), " \t\n"))
	}

	body := strings.Join(sections, "\n\n---\n\n")
	if len(failures) > 0 {
		var notes []string
		for _, r := range failures {
			notes = append(notes, fmt.Sprintf("_Note: pass %d failed: %s_", r.Pass, r.ErrorMessage))
		}
		body += "\n\n---\n\n" + strings.Join(notes, "\n")
	}
	return body
}

// stripHeadingLine removes the original "### N. Title" line so the new
// numbering replaces it.
func stripHeadingLine(block string) string {
	if idx := strings.IndexByte(block, '\n'); idx >= 0 {
		return strings.TrimLeft(block[idx+1:], "\n")
	}
	return ""
}

func joinPasses(passes []int) string {
	parts := make([]string, len(passes))
	for i, p := range passes {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
