package engine

import (
	"math"
	"strings"
	"unicode"
)

// SimilarityFunc scores how alike two value strings are, in [0, 1]. The
// write gate, conflict resolver and consolidator all take one so the
// measure can be swapped without touching decision logic.
type SimilarityFunc func(a, b string) float64

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "at": true,
	"user": true, "users": true, "i": true, "my": true, "me": true, "we": true,
	"的": true, "了": true, "是": true, "在": true, "和": true, "我": true, "用户": true,
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func hasCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}

// tokenizeValue lowercases and splits a value into meaningful tokens. CJK
// chunks additionally contribute character unigrams, since CJK words are
// not space-delimited and character overlap gives a usable Jaccard signal.
func tokenizeValue(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '_', r == '.', r == '-', isCJK(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	var tokens []string
	for _, chunk := range strings.Fields(b.String()) {
		if stopWords[chunk] {
			continue
		}
		if hasCJK(chunk) {
			for _, r := range chunk {
				if isCJK(r) && !stopWords[string(r)] {
					tokens = append(tokens, string(r))
				}
			}
			if len([]rune(chunk)) >= 2 {
				tokens = append(tokens, chunk)
			}
			continue
		}
		tokens = append(tokens, chunk)
	}
	return tokens
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenizeValue(text) {
		set[t] = true
	}
	return set
}

func intersectionSize(a, b map[string]bool) int {
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

// JaccardSimilarity computes token-set Jaccard between two strings.
func JaccardSimilarity(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := intersectionSize(setA, setB)
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// OverlapSimilarity is the overlap coefficient, better when one value is
// a subset of the other: |A ∩ B| / min(|A|, |B|).
func OverlapSimilarity(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := intersectionSize(setA, setB)
	return float64(inter) / float64(min(len(setA), len(setB)))
}

// CombinedSimilarity is the default SimilarityFunc: the max of Jaccard and
// overlap, catching both near-duplicates and subset cases.
func CombinedSimilarity(a, b string) float64 {
	return math.Max(JaccardSimilarity(a, b), OverlapSimilarity(a, b))
}

// NormalizeValue case-folds and collapses whitespace, the equality form
// used for duplicate detection.
func NormalizeValue(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
