package services

import (
	"strings"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// DefaultDedupThreshold is the description similarity at which two issues
// on the same paragraph count as duplicates.
const DefaultDedupThreshold = 0.85

// DedupIssues collapses near-duplicate issues. Two issues are duplicates
// when they target the same paragraph (or both the whole document) and
// their descriptions have bigram Dice similarity >= threshold. The higher
// severity survives; on a tie the earlier issue wins. Order is otherwise kept.
func DedupIssues(issues []domain.Issue, threshold float64) []domain.Issue {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}

	kept := make([]domain.Issue, 0, len(issues))
	grams := make([]map[string]int, 0, len(issues))
	for _, issue := range issues {
		g := bigrams(normalizeDescription(issue.Description))
		dup := -1
		for j, k := range kept {
			if samePara(k.ParagraphIndex, issue.ParagraphIndex) && dice(grams[j], g) >= threshold {
				dup = j
				break
			}
		}
		if dup < 0 {
			kept = append(kept, issue)
			grams = append(grams, g)
			continue
		}
		if issue.Severity.Rank() > kept[dup].Severity.Rank() {
			kept[dup] = issue
			grams[dup] = g
		}
	}
	return kept
}

func samePara(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// normalizeDescription lowercases, drops punctuation and collapses whitespace.
func normalizeDescription(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// bigrams counts adjacent rune pairs.
func bigrams(s string) map[string]int {
	runes := []rune(s)
	out := make(map[string]int, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])]++
	}
	return out
}

// dice is the Sørensen–Dice coefficient over bigram multisets.
// Two empty sets are identical.
func dice(a, b map[string]int) float64 {
	na, nb := 0, 0
	for _, n := range a {
		na += n
	}
	for _, n := range b {
		nb += n
	}
	if na+nb == 0 {
		return 1
	}
	shared := 0
	for g, n := range a {
		shared += min(n, b[g])
	}
	return 2 * float64(shared) / float64(na+nb)
}
