// Package textutil holds the text normalisation shared by lexical scoring,
// near-duplicate detection and context assembly.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold decomposes s and drops combining marks, so "ação" becomes "acao".
func Fold(s string) string {
	if s == "" {
		return s
	}
	// Chains carry internal buffers and are not safe for concurrent use.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokenize lowercases and folds text, turns every run of non letter/digit
// characters into a separator and splits on it.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	folded := Fold(strings.ToLower(text))
	var builder strings.Builder
	builder.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// TokenSet returns the distinct tokens used for overlap comparisons:
// folded, punctuation removed, lowercased and split on whitespace.
func TokenSet(text string) map[string]struct{} {
	folded := Fold(text)
	var builder strings.Builder
	builder.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		builder.WriteRune(unicode.ToLower(r))
	}
	fields := strings.Fields(builder.String())
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Jaccard is |a∩b| / |a∪b|. Empty sets never overlap.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	var inter int
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// CollapseWhitespace replaces every whitespace run with one space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
