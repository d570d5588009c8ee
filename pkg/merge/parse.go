package merge

import (
	"regexp"
	"strings"
)

// NoFindingsMarker is the literal an agent emits for a clean review.
const NoFindingsMarker = "指摘事項なし"

var (
	findingHeadingRe = regexp.MustCompile(`(?m)^###\s+\[?(\d+)\]?\.\s+(.+?)\s*$`)
	priorityCellRe   = regexp.MustCompile(`(?i)\|\s*\*{0,2}Priority\*{0,2}\s*\|\s*(Critical|High|Medium|Low)\s*\|`)
	summaryCellRe    = regexp.MustCompile(`\|\s*\*{0,2}指摘の概要\*{0,2}\s*\|\s*([^|]+?)\s*\|`)
	locationCellRe   = regexp.MustCompile(`\|\s*\*{0,2}該当箇所\*{0,2}\s*\|\s*([^|]+?)\s*\|`)
)

// findingBlock is one parsed finding from a pass body: the raw heading
// title, the full block text including the heading, and the table
// fields used by the near-duplicate test.
type findingBlock struct {
	title    string
	body     string
	priority string
	summary  string
	location string
}

// parseFindingBlocks splits a pass body on level-3 finding headings.
// Returns nil when the body carries no parseable findings; callers fold
// such bodies into the fallback entry.
func parseFindingBlocks(body string) []findingBlock {
	matches := findingHeadingRe.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]findingBlock, 0, len(matches))
	for i, m := range matches {
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimSpace(trimTrailingSeparator(body[m[0]:end]))
		blocks = append(blocks, findingBlock{
			title:    body[m[4]:m[5]],
			body:     text,
			priority: firstGroup(priorityCellRe, text),
			summary:  firstGroup(summaryCellRe, text),
			location: firstGroup(locationCellRe, text),
		})
	}
	return blocks
}

// trimTrailingSeparator drops a trailing "---" divider line so blocks
// re-render cleanly when joined.
func trimTrailingSeparator(block string) string {
	trimmed := strings.TrimRight(block, " \t\n")
	if strings.HasSuffix(trimmed, "\n---") {
		return trimmed[:len(trimmed)-len("---")]
	}
	return trimmed
}

func firstGroup(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
