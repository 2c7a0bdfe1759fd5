package rag

import "citerag/internal/apperr"

// ContextSelector spreads the context over documents: it takes one chunk per
// document per round, in order of first appearance, until topK chunks are
// taken or every document is exhausted or capped.
type ContextSelector struct{}

// Select picks at most topK sources with at most maxChunksPerDoc per document.
// Within a document, sources keep their input order.
func (ContextSelector) Select(sources []ContextSource, topK, maxChunksPerDoc int) ([]ContextSource, error) {
	if topK < 0 {
		return nil, apperr.Invalid("top_k", "must be >= 0, got %d", topK)
	}
	if maxChunksPerDoc <= 0 {
		return nil, apperr.Invalid("max_chunks_per_doc", "must be positive, got %d", maxChunksPerDoc)
	}
	if topK == 0 || len(sources) == 0 {
		return nil, nil
	}

	var order []string
	buckets := make(map[string][]ContextSource)
	for _, s := range sources {
		if _, ok := buckets[s.DocumentID]; !ok {
			order = append(order, s.DocumentID)
		}
		buckets[s.DocumentID] = append(buckets[s.DocumentID], s)
	}

	out := make([]ContextSource, 0, min(topK, len(sources)))
	for round := 0; round < maxChunksPerDoc && len(out) < topK; round++ {
		progressed := false
		for _, doc := range order {
			if len(out) == topK {
				break
			}
			bucket := buckets[doc]
			if round >= len(bucket) {
				continue
			}
			out = append(out, bucket[round])
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out, nil
}
