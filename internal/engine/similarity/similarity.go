// Package similarity implements the approximate string matching used to
// recognise nodes that describe the same concept.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// DefaultThreshold is the similarity two tokens must exceed to count as a
// fuzzy match.
const DefaultThreshold = 0.8

// minTokenLen is the minimum rune length of a keyword token.
const minTokenLen = 2

// Normalize lowercases s and collapses surrounding and repeated whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '/', '.':
		return true
	}
	return unicode.IsSpace(r)
}

// Tokens splits s into lowercase keywords on whitespace, hyphens,
// underscores, slashes and dots. Tokens shorter than two runes are dropped and
// duplicates are removed; the first occurrence keeps its position.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), isSeparator)
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLen || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Distance returns the Levenshtein edit distance between a and b with unit
// costs for insertion, deletion and substitution.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Similarity returns 1 - distance/max(len(a), len(b)) measured in runes. Two
// empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(longest)
}

// Matcher decides whether two strings name the same concept.
type Matcher struct {
	threshold float64
}

// NewMatcher returns a matcher with the given similarity threshold. Values
// outside (0, 1] fall back to DefaultThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// IsFuzzyMatch reports whether a and b are equal, contain one another, or are
// more similar than the threshold after normalization. Blank input never
// matches.
func (m *Matcher) IsFuzzyMatch(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return false
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return Similarity(a, b) > m.threshold
}

// AnyMatch reports whether any keyword in left fuzzy-matches any keyword in
// right.
func (m *Matcher) AnyMatch(left, right []string) bool {
	for _, l := range left {
		for _, r := range right {
			if m.IsFuzzyMatch(l, r) {
				return true
			}
		}
	}
	return false
}

// SharedKeywords counts the keywords of left that fuzzy-match at least one
// keyword of right.
func (m *Matcher) SharedKeywords(left, right []string) int {
	shared := 0
	for _, l := range left {
		for _, r := range right {
			if m.IsFuzzyMatch(l, r) {
				shared++
				break
			}
		}
	}
	return shared
}

var defaultMatcher = NewMatcher(DefaultThreshold)

// IsFuzzyMatch matches a and b with the default threshold.
func IsFuzzyMatch(a, b string) bool {
	return defaultMatcher.IsFuzzyMatch(a, b)
}
