package search

import (
	"math"

	"citerag/internal/apperr"
	"citerag/internal/domain"
	"citerag/internal/textutil"
)

// SoftDedupFilter drops hits that nearly repeat an earlier hit of the same
// document, measured by token Jaccard similarity.
type SoftDedupFilter struct {
	threshold float64
}

// NewSoftDedupFilter creates a filter dropping hits at or above threshold.
func NewSoftDedupFilter(threshold float64) (*SoftDedupFilter, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, apperr.Invalid("overlap_threshold", "must be in [0,1], got %v", threshold)
	}
	return &SoftDedupFilter{threshold: threshold}, nil
}

// Filter keeps hit order. The first hit of every document is always kept.
// Text with no tokens never counts as a duplicate.
func (f *SoftDedupFilter) Filter(hits []domain.SearchMatch) []domain.SearchMatch {
	if len(hits) == 0 {
		return nil
	}

	kept := make(map[string][]map[string]struct{}, len(hits))
	out := make([]domain.SearchMatch, 0, len(hits))
	for _, hit := range hits {
		tokens := textutil.TokenSet(hit.Chunk.Text)
		if f.duplicate(tokens, kept[hit.DocumentID]) {
			continue
		}
		kept[hit.DocumentID] = append(kept[hit.DocumentID], tokens)
		out = append(out, hit)
	}
	return out
}

func (f *SoftDedupFilter) duplicate(tokens map[string]struct{}, kept []map[string]struct{}) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, other := range kept {
		if len(other) == 0 {
			continue
		}
		if textutil.Jaccard(tokens, other) >= f.threshold {
			return true
		}
	}
	return false
}
