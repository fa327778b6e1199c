// Package quality holds the cheap text heuristics used to keep generated
// coaching turns on topic, non-repetitive, and in tune with the counterpart.
package quality

import (
	"strings"
	"unicode"
)

const stripped = "「」『』（）()【】[]、。.,!?！？:：;；-"

// Normalize lowercases s and drops whitespace and the bracket/punctuation
// set shared by Japanese and ASCII text.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || strings.ContainsRune(stripped, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Bigrams returns the set of adjacent rune pairs of the normalized text.
func Bigrams(s string) map[string]struct{} {
	rs := []rune(Normalize(s))
	set := make(map[string]struct{}, len(rs))
	for i := 0; i+1 < len(rs); i++ {
		set[string(rs[i:i+2])] = struct{}{}
	}
	return set
}

// OverlapRatio is |A∩B| / min(|A|,|B|) over the bigram sets of a and b,
// or 0 when either side has no bigram.
func OverlapRatio(a, b string) float64 {
	as, bs := Bigrams(a), Bigrams(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	small, large := as, bs
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for k := range small {
		if _, ok := large[k]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
