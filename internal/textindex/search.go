package textindex

import (
	"context"
	"math"

	"citerag/internal/domain"
)

// snapshot is the state a search scores against, copied under the read lock.
type snapshot struct {
	entries []*entry
	docFreq map[string]int
	n       int
	avgLen  float64
}

// Search ranks chunks by BM25 against query and returns at most width hits.
// Only chunks whose metadata matches every filter entry are candidates;
// corpus statistics always cover the whole index.
func (ix *Index) Search(query string, width int, filter map[string]string) []domain.SearchMatch {
	if width <= 0 {
		return nil
	}
	queryTerms := distinct(ix.tokens(query))
	if len(queryTerms) == 0 {
		return nil
	}

	snap, ok := ix.snapshot(queryTerms, filter)
	if !ok {
		return nil
	}

	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		df := float64(snap.docFreq[term])
		n := float64(snap.n)
		idf[term] = math.Log(((n-df+0.5)/(df+0.5)) + 1)
	}

	k1 := ix.opts.TermFrequencySaturation
	b := ix.opts.LengthNormalization

	matches := make([]domain.SearchMatch, 0, len(snap.entries))
	for _, e := range snap.entries {
		var score float64
		var hit bool
		for _, term := range queryTerms {
			tf := float64(e.terms[term])
			if tf == 0 {
				continue
			}
			hit = true
			lengthRatio := 0.0
			if snap.avgLen > 0 {
				lengthRatio = float64(e.length) / snap.avgLen
			}
			score += idf[term] * (tf * (k1 + 1)) / (tf + k1*(1-b+b*lengthRatio))
		}
		if !hit {
			continue
		}
		matches = append(matches, domain.SearchMatch{
			DocumentID: e.documentID,
			Chunk:      e.chunk,
			Score:      score,
		})
	}

	domain.SortMatches(matches)
	if len(matches) > width {
		matches = matches[:width]
	}
	return matches
}

// SearchContext is Search for callers holding a context. It fails only when
// ctx is already done.
func (ix *Index) SearchContext(ctx context.Context, query string, width int, filter map[string]string) ([]domain.SearchMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ix.Search(query, width, filter), nil
}

func (ix *Index) snapshot(queryTerms []string, filter map[string]string) (snapshot, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.entries)
	if n == 0 {
		return snapshot{}, false
	}

	snap := snapshot{
		entries: make([]*entry, 0, n),
		docFreq: make(map[string]int, len(queryTerms)),
		n:       n,
		avgLen:  float64(ix.totalLength) / float64(n),
	}
	for _, term := range queryTerms {
		snap.docFreq[term] = ix.docFreq[term]
	}
	for _, e := range ix.entries {
		if len(filter) > 0 && !e.chunk.MatchesFilter(filter) {
			continue
		}
		snap.entries = append(snap.entries, e)
	}
	if len(snap.entries) == 0 {
		return snapshot{}, false
	}
	return snap, true
}

func distinct(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
