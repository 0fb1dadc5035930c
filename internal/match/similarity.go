package match

import (
	"sort"
	"strings"
)

// Similarity scores two token sets on a 0-100 scale. It takes the maximum of
// token-set Jaccard and an LCS ratio over the sorted, joined token strings,
// so reworded summaries ("Pod api-7 OOMKilled" vs "api-7 pod killed OOM")
// still score high. Summaries with no token in common score zero outright;
// the character-level ratio alone rates unrelated English text far too
// generously. Deterministic by construction.
func Similarity(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	jaccard := tokenJaccard(a, b)
	if jaccard == 0 {
		return 0
	}
	lcs := lcsRatio(sortedJoin(a), sortedJoin(b))
	best := jaccard
	if lcs > best {
		best = lcs
	}
	return int(best*100 + 0.5)
}

func tokenJaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	return setJaccard(setA, setB)
}

func setJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for t := range a {
		if _, ok := b[t]; ok {
			common++
		}
	}
	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

func sortedJoin(tokens []string) string {
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// maxLCSInput bounds the quadratic LCS table for pathological summaries.
const maxLCSInput = 256

func lcsRatio(a, b string) float64 {
	if len(a) > maxLCSInput {
		a = a[:maxLCSInput]
	}
	if len(b) > maxLCSInput {
		b = b[:maxLCSInput]
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}
