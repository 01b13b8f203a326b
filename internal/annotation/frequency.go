package annotation

import (
	"strconv"
	"strings"
)

// DefaultProportion applies when the frequency column is empty or not understood.
const DefaultProportion = 0.5

// frequencyTerms maps HPO frequency vocabulary (term IDs and labels, lowercased) to percentages.
// The HPO terms denote ranges; each is pinned to one representative value.
var frequencyTerms = map[string]float64{
	"hp:0040280": 100, // Obligate
	"hp:0040281": 80,  // Very frequent
	"hp:0040282": 50,  // Frequent
	"hp:0040283": 20,  // Occasional
	"hp:0040284": 1,   // Very rare
	"hp:0040285": 0,   // Excluded

	"obligate":      100,
	"very frequent": 80,
	"frequent":      50,
	"occasional":    20,
	"very rare":     1,
	"excluded":      0,
}

// Proportion converts an annotation frequency field into a proportion in [0,1].
//
// Known vocabulary terms map through the fixed percentage table, "n/m" ratios
// become n/m, and anything else falls back to DefaultProportion.
func Proportion(field string) float64 {
	f := strings.TrimSpace(field)
	if pct, ok := frequencyTerms[strings.ToLower(f)]; ok {
		return pct / 100
	}
	if num, den, ok := strings.Cut(f, "/"); ok {
		if p, ok := parseRatio(num, den); ok {
			return p
		}
	}
	return DefaultProportion
}

func parseRatio(num, den string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || d <= 0 || n < 0 {
		return 0, false
	}
	return min(n/d, 1), true
}
