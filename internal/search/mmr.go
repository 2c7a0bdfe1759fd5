package search

import (
	"math"

	"citerag/internal/apperr"
	"citerag/internal/domain"
	"citerag/internal/textutil"
)

const mmrEpsilon = 1e-12

// MMRReranker reorders hits by maximal marginal relevance:
// lambda*score - (1-lambda)*max Jaccard against the hits already chosen.
type MMRReranker struct {
	lambda float64
}

// NewMMRReranker creates a reranker. lambda=1 is pure relevance.
func NewMMRReranker(lambda float64) (*MMRReranker, error) {
	if math.IsNaN(lambda) || lambda < 0 || lambda > 1 {
		return nil, apperr.Invalid("lambda", "must be in [0,1], got %v", lambda)
	}
	return &MMRReranker{lambda: lambda}, nil
}

// Rerank greedily picks min(k, len(hits)) hits. Scores are left unchanged.
func (r *MMRReranker) Rerank(hits []domain.SearchMatch, k int) []domain.SearchMatch {
	if k <= 0 || len(hits) == 0 {
		return nil
	}
	k = min(k, len(hits))

	tokens := make([]map[string]struct{}, len(hits))
	for i, h := range hits {
		tokens[i] = textutil.TokenSet(h.Chunk.Text)
	}

	taken := make([]bool, len(hits))
	selected := make([]int, 0, k)
	for len(selected) < k {
		best := -1
		var bestMMR float64
		for i := range hits {
			if taken[i] {
				continue
			}
			var redundancy float64
			for _, j := range selected {
				redundancy = max(redundancy, textutil.Jaccard(tokens[i], tokens[j]))
			}
			mmr := r.lambda*hits[i].Score - (1-r.lambda)*redundancy
			if best < 0 || beats(mmr, hits[i], bestMMR, hits[best]) {
				best, bestMMR = i, mmr
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		selected = append(selected, best)
	}

	out := make([]domain.SearchMatch, len(selected))
	for i, idx := range selected {
		out[i] = hits[idx]
	}
	return out
}

// beats reports whether candidate c with value mmr displaces the incumbent.
func beats(mmr float64, c domain.SearchMatch, incumbentMMR float64, incumbent domain.SearchMatch) bool {
	if diff := mmr - incumbentMMR; math.Abs(diff) > mmrEpsilon {
		return diff > 0
	}
	if diff := c.Score - incumbent.Score; math.Abs(diff) > mmrEpsilon {
		return diff > 0
	}
	return domain.CompareIdentity(c.DocumentID, c.ChunkIndex(), incumbent.DocumentID, incumbent.ChunkIndex()) < 0
}
