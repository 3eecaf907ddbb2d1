package dedup

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// TokenSortRatio computes a 0-100 similarity between two names. Both inputs
// are lowercased, split into tokens and re-joined in sorted order before the
// edit distance is taken, so word order doesn't affect the score.
func TokenSortRatio(a, b string) int {
	as := sortTokens(a)
	bs := sortTokens(b)

	if as == bs {
		return 100
	}
	if as == "" || bs == "" {
		return 0
	}

	dist := levenshtein.ComputeDistance(as, bs)
	longest := utf8.RuneCountInString(as)
	if l := utf8.RuneCountInString(bs); l > longest {
		longest = l
	}

	return (longest - dist) * 100 / longest
}

func sortTokens(s string) string {
	tokens := strings.Fields(strings.ToLower(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
