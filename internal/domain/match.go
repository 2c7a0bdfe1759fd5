package domain

import "sort"

// SearchMatch is a ranked hit. Score is cosine similarity in [0,1] for vector
// hits, raw BM25 for lexical hits and a fused value after aggregation.
type SearchMatch struct {
	DocumentID string    `json:"document_id"`
	Chunk      TextChunk `json:"chunk"`
	Score      float64   `json:"score"`
}

// ChunkIndex returns the chunk index of the match or NoChunkIndex.
func (m SearchMatch) ChunkIndex() int {
	return m.Chunk.IndexOr(NoChunkIndex)
}

// CompareIdentity orders two matches by document ID ascending, then chunk
// index ascending with missing indexes last. It returns -1, 0 or 1.
func CompareIdentity(docA string, idxA int, docB string, idxB int) int {
	if docA != docB {
		if docA < docB {
			return -1
		}
		return 1
	}
	if idxA == idxB {
		return 0
	}
	if idxA == NoChunkIndex {
		return 1
	}
	if idxB == NoChunkIndex {
		return -1
	}
	if idxA < idxB {
		return -1
	}
	return 1
}

// RankedBefore is the canonical result order: score descending, then document
// ID ascending, then chunk index ascending (missing last).
func RankedBefore(a, b SearchMatch) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return CompareIdentity(a.DocumentID, a.ChunkIndex(), b.DocumentID, b.ChunkIndex()) < 0
}

// SortMatches sorts matches in place in canonical result order.
func SortMatches(matches []SearchMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return RankedBefore(matches[i], matches[j])
	})
}
