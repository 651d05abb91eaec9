package turn

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// matchThreshold is the minimum Jaro-Winkler similarity for a free-text action
// to count as picking one of the suggested choices. High on purpose: a typo in
// "Step through the gate" should match, "step on the gate guard" should not.
const matchThreshold = 0.92

// MatchChoice fuzzy-matches a submitted action against the active choice set
// and returns the canonical choice text when one matches.
func MatchChoice(action string, choices []string) (string, bool) {
	norm := normalize(action)
	if norm == "" {
		return "", false
	}

	best := ""
	bestScore := 0.0
	for _, choice := range choices {
		if score := matchr.JaroWinkler(norm, normalize(choice), false); score > bestScore {
			best, bestScore = choice, score
		}
	}
	if bestScore < matchThreshold {
		return "", false
	}
	return best, true
}

// normalize lowercases, trims punctuation, and collapses whitespace so the
// comparison sees only the words.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!?")
	return strings.Join(strings.Fields(s), " ")
}
