// Package search fuses lexical and vector retrieval into one ranking.
package search

import (
	"math"

	"citerag/internal/apperr"
	"citerag/internal/domain"
)

// flatRange is the score spread under which a source is treated as uniform.
const flatRange = 1e-12

// HybridAggregator fuses vector and BM25 hits by min-max normalizing each
// source and taking alpha*vector + (1-alpha)*bm25.
type HybridAggregator struct {
	alpha float64
}

// NewHybridAggregator creates an aggregator weighting the vector side by alpha.
func NewHybridAggregator(alpha float64) (*HybridAggregator, error) {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return nil, apperr.Invalid("alpha", "must be in [0,1], got %v", alpha)
	}
	return &HybridAggregator{alpha: alpha}, nil
}

// Alpha returns the vector weight.
func (a *HybridAggregator) Alpha() float64 {
	return a.alpha
}

type hitKey struct {
	documentID string
	chunkIndex int
}

type fusedHit struct {
	match  domain.SearchMatch
	vector float64
	bm25   float64
}

// Aggregate merges both hit lists into at most k matches. Hits are keyed by
// (document, chunk index); on collision the vector hit's chunk is kept.
func (a *HybridAggregator) Aggregate(vectorHits, bm25Hits []domain.SearchMatch, k int) []domain.SearchMatch {
	if k <= 0 || (len(vectorHits) == 0 && len(bm25Hits) == 0) {
		return nil
	}

	vectorNorm := normalizeScores(vectorHits)
	bm25Norm := normalizeScores(bm25Hits)

	fused := make(map[hitKey]*fusedHit, len(vectorHits)+len(bm25Hits))
	order := make([]hitKey, 0, len(vectorHits)+len(bm25Hits))

	for i, hit := range vectorHits {
		key := hitKey{hit.DocumentID, hit.ChunkIndex()}
		if f, ok := fused[key]; ok {
			f.vector = max(f.vector, vectorNorm[i])
			continue
		}
		fused[key] = &fusedHit{match: hit, vector: vectorNorm[i]}
		order = append(order, key)
	}
	for i, hit := range bm25Hits {
		key := hitKey{hit.DocumentID, hit.ChunkIndex()}
		if f, ok := fused[key]; ok {
			f.bm25 = max(f.bm25, bm25Norm[i])
			continue
		}
		fused[key] = &fusedHit{match: hit, bm25: bm25Norm[i]}
		order = append(order, key)
	}

	out := make([]domain.SearchMatch, 0, len(order))
	for _, key := range order {
		f := fused[key]
		m := f.match
		m.Score = a.alpha*f.vector + (1-a.alpha)*f.bm25
		out = append(out, m)
	}

	domain.SortMatches(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// normalizeScores min-max scales scores to [0,1]. A flat list maps to 1.0.
func normalizeScores(hits []domain.SearchMatch) []float64 {
	if len(hits) == 0 {
		return nil
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = min(lo, h.Score)
		hi = max(hi, h.Score)
	}

	out := make([]float64, len(hits))
	spread := hi - lo
	for i, h := range hits {
		if spread <= flatRange {
			out[i] = 1
			continue
		}
		out[i] = (h.Score - lo) / spread
	}
	return out
}
