package merge

import (
	"strings"
	"unicode"
)

// normalizeText lowercases, strips punctuation, and collapses runs of
// whitespace to single spaces. Idempotent.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// bigrams returns the set of character bigrams of the normalized text.
// A single-rune input contributes itself so short fields still compare.
func bigrams(normalized string) map[string]struct{} {
	runes := []rune(normalized)
	set := make(map[string]struct{}, len(runes))
	if len(runes) == 1 {
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|. Two empty sets are not similar.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// minKeywordLength bounds which title tokens count as keywords.
const minKeywordLength = 4

// shareKeyword reports whether two normalized titles share a token of
// at least minKeywordLength runes.
func shareKeyword(aTitle, bTitle string) bool {
	aTokens := keywordSet(aTitle)
	if len(aTokens) == 0 {
		return false
	}
	for _, tok := range strings.Fields(bTitle) {
		if len([]rune(tok)) < minKeywordLength {
			continue
		}
		if _, ok := aTokens[tok]; ok {
			return true
		}
	}
	return false
}

func keywordSet(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(title) {
		if len([]rune(tok)) >= minKeywordLength {
			set[tok] = struct{}{}
		}
	}
	return set
}
