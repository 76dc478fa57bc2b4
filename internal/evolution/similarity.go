// Package evolution clusters related instincts and promotes qualifying
// clusters into higher-level artifacts (skills, commands, subagents,
// rules, CLAUDE.md entries).
package evolution

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/instinctd/internal/instinct"
)

// stopWords are dropped before trigger tokens are compared.
var stopWords = map[string]bool{
	"when": true, "the": true, "a": true, "an": true, "to": true,
	"for": true, "of": true, "in": true, "on": true, "is": true,
	"are": true, "with": true, "and": true,
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// similarity weights: token overlap dominates, shared domain nudges
// borderline pairs over the link threshold.
const (
	tokenWeight  = 0.75
	domainWeight = 0.25
)

// triggerTokens normalizes a trigger into its significant word set.
func triggerTokens(trigger string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(nonWordRe.ReplaceAllString(strings.ToLower(trigger), " ")) {
		if len(w) > 2 && !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

// jaccard computes set overlap in [0, 1].
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similarity scores how related two instincts are, in [0, 1], combining
// trigger-token overlap with domain equality.
func Similarity(a, b *instinct.Instinct) float64 {
	score := tokenWeight * jaccard(triggerTokens(a.Trigger), triggerTokens(b.Trigger))
	if a.Domain != "" && a.Domain == b.Domain {
		score += domainWeight
	}
	return score
}

// sharedTheme derives a short title theme from the most common trigger
// tokens across a set of instincts.
func sharedTheme(members []*instinct.Instinct) string {
	counts := make(map[string]int)
	for _, m := range members {
		for w := range triggerTokens(m.Trigger) {
			counts[w]++
		}
	}
	if len(counts) == 0 {
		return members[0].Domain
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}
