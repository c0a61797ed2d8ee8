package probe

import (
	"time"

	"kgtorrent/internal/transformer/builtin"
)

// extraLayouts widen the builtin list with formats seen in other exports.
var extraLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
}

// CandidateLayouts returns the builtin date layouts followed by extraLayouts.
func CandidateLayouts() []string {
	out := append([]string(nil), builtin.DefaultDateLayouts...)
	return append(out, extraLayouts...)
}

// preference ranks layouts by position: earlier wins ties.
func preference(layouts []string) func(string) int {
	rank := make(map[string]int, len(layouts))
	for i, l := range layouts {
		if _, ok := rank[l]; !ok {
			rank[l] = len(layouts) - i
		}
	}
	return func(l string) int { return rank[l] }
}

// selectBestLayout scores each candidate layout by how many samples it
// matches and returns the winner with its score. Ties go to the layout with
// the higher preference. No match returns "".
func selectBestLayout(samples []string, layouts []string, pref func(string) int) (string, int) {
	if len(samples) == 0 || len(layouts) == 0 {
		return "", 0
	}
	scores := make([]int, len(layouts))
	for _, s := range samples {
		for i, lay := range layouts {
			if _, err := time.Parse(lay, s); err == nil {
				scores[i]++
			}
		}
	}

	bestIdx, bestScore, bestPref := -1, -1, -1
	for i := range layouts {
		sc := scores[i]
		if sc < bestScore {
			continue
		}
		p := pref(layouts[i])
		if sc > bestScore || p > bestPref {
			bestIdx, bestScore, bestPref = i, sc, p
		}
	}
	if bestIdx >= 0 && bestScore > 0 {
		return layouts[bestIdx], bestScore
	}
	return "", 0
}
