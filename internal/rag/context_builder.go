package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"citerag/internal/apperr"
	"citerag/internal/textutil"
)

const (
	blockSeparator  = "\n\n"
	truncatedSuffix = " [...]"
)

// ContextBuilder assembles the numbered context handed to the generator.
type ContextBuilder interface {
	Build(sources []ContextSource, budgetChars int) (BuiltContext, error)
}

// BudgetContextBuilder packs "[n] text" blocks until budgetChars runes are
// used. The first chunk that does not fit is cut, marked with " [...]" when
// there is room for it, and ends the context.
type BudgetContextBuilder struct{}

var _ ContextBuilder = BudgetContextBuilder{}

// Build assembles sources in order. Chunks that are blank after whitespace
// collapsing are skipped without consuming a citation number.
func (BudgetContextBuilder) Build(sources []ContextSource, budgetChars int) (BuiltContext, error) {
	if budgetChars <= 0 {
		return BuiltContext{}, apperr.Invalid("budget_chars", "must be positive, got %d", budgetChars)
	}

	var b strings.Builder
	var citations []CitationEntry
	used := 0
	truncated := false

	for _, src := range sources {
		text := textutil.CollapseWhitespace(src.Text)
		if text == "" {
			continue
		}

		n := len(citations) + 1
		sep := ""
		if n > 1 {
			sep = blockSeparator
		}
		label := fmt.Sprintf("[%d] ", n)
		fixed := utf8.RuneCountInString(sep) + utf8.RuneCountInString(label)
		textLen := utf8.RuneCountInString(text)
		remaining := budgetChars - used

		if fixed+textLen <= remaining {
			b.WriteString(sep)
			b.WriteString(label)
			b.WriteString(text)
			used += fixed + textLen
			citations = append(citations, entryFor(n, src))
			continue
		}

		truncated = true
		room := remaining - fixed
		if room <= 0 {
			break
		}
		suffixLen := utf8.RuneCountInString(truncatedSuffix)
		var part string
		if room > suffixLen {
			part = strings.TrimRight(prefixRunes(text, room-suffixLen), " ")
			if part == "" {
				part = strings.TrimLeft(truncatedSuffix, " ")
			} else {
				part += truncatedSuffix
			}
		} else {
			part = strings.TrimRight(prefixRunes(text, room), " ")
		}
		b.WriteString(sep)
		b.WriteString(label)
		b.WriteString(part)
		citations = append(citations, entryFor(n, src))
		break
	}

	return BuiltContext{
		Text:      b.String(),
		Citations: citations,
		UsedK:     len(citations),
		Truncated: truncated,
	}, nil
}

func entryFor(n int, src ContextSource) CitationEntry {
	return CitationEntry{N: n, DocumentID: src.DocumentID, Title: src.Title, ChunkIndex: src.ChunkIndex}
}

func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
