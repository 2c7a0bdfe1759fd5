package rag

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	answerPattern    = regexp.MustCompile(`(?is)ANSWER:\s*(.*?)\s*CITATIONS:`)
	citationsPattern = regexp.MustCompile(`(?i)CITATIONS:`)
	markerPattern    = regexp.MustCompile(`\[(\d+)\]`)
)

// OutputParser extracts the answer and citation numbers from generated text.
// It never fails: unstructured output becomes a whole-text answer.
type OutputParser struct {
	// ScanAnswer also collects [n] markers from the answer when the
	// CITATIONS section has none.
	ScanAnswer bool
}

// Parse reads an "ANSWER: ... CITATIONS: ..." reply.
func (p OutputParser) Parse(raw string) ParsedOutput {
	var answer, section string

	if m := answerPattern.FindStringSubmatchIndex(raw); m != nil {
		answer = strings.TrimSpace(raw[m[2]:m[3]])
		section = raw[m[1]:]
	} else {
		answer = strings.TrimSpace(raw)
		if loc := citationsPattern.FindStringIndex(raw); loc != nil {
			section = raw[loc[1]:]
		}
	}

	numbers := citationNumbers(section)
	if len(numbers) == 0 && p.ScanAnswer {
		numbers = citationNumbers(answer)
	}
	return ParsedOutput{Answer: answer, CitationNumbers: numbers}
}

// citationNumbers returns the distinct [n] markers of text in first-seen order.
func citationNumbers(text string) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
