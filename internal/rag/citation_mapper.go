package rag

// CitationMapper resolves citation numbers against a built context.
type CitationMapper struct{}

// Map returns the cited sources in first-cited order. Numbers outside the
// context's citation index are dropped.
func (CitationMapper) Map(numbers []int, built BuiltContext) []Citation {
	out := make([]Citation, 0, len(numbers))
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		if e, ok := built.Lookup(n); ok {
			out = append(out, e.Citation())
		}
	}
	return out
}
