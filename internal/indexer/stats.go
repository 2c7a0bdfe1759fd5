package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "sliding-v1"
	// RunesPerToken is an approximation for token counting (4 chars per token).
	RunesPerToken = 4.0
)

// IngestStats summarizes an ingestion run or the current catalog.
type IngestStats struct {
	// DocsProcessed is the number of documents indexed.
	DocsProcessed int `json:"docs_processed"`
	// DocsWith0Chunks is the number of documents that produced no chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// ChunksEmbedded is the number of chunks embedded and stored.
	ChunksEmbedded int `json:"chunks_embedded"`
	// Errors counts documents that failed to index.
	Errors int `json:"errors"`
	// ChunkTokenStats contains statistics about estimated tokens per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion identifies the index build (chunker, embedding collection and parameters).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

func (p *Pipeline) newStats() *IngestStats {
	return &IngestStats{
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   p.IndexVersion(),
	}
}

// IndexVersion hashes the chunker parameters and the embedding collection.
// Two builds with the same version produce the same chunks and vectors.
func (p *Pipeline) IndexVersion() string {
	input := fmt.Sprintf("%s|%s|size=%d|overlap=%d",
		ChunkerVersion, p.embedder.Spec().Collection().Key(), p.chunker.Size(), p.chunker.Overlap())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// CatalogStats computes statistics from the document catalog.
func (p *Pipeline) CatalogStats(ctx context.Context) (*IngestStats, error) {
	if p.docs == nil || p.chunks == nil {
		return nil, fmt.Errorf("no document catalog configured")
	}

	docs, err := p.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	texts, err := p.chunks.ListTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	stats := p.newStats()
	stats.DocsProcessed = len(docs)
	for _, d := range docs {
		if d.ChunkCount == 0 {
			stats.DocsWith0Chunks++
		}
	}
	stats.ChunksEmbedded = len(texts)
	stats.ChunkTokenStats = computeTokenStats(tokenCounts(texts))
	return stats, nil
}

// tokenCounts estimates tokens from rune counts, at least 1 per chunk.
func tokenCounts(texts []string) []int {
	counts := make([]int, 0, len(texts))
	for _, text := range texts {
		n := int(math.Round(float64(utf8.RuneCountInString(text)) / RunesPerToken))
		counts = append(counts, max(n, 1))
	}
	return counts
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range sorted {
		sum += count
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	p95Index = min(max(p95Index, 0), len(sorted)-1)

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
