package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
	"citerag/internal/embedding"
	"citerag/internal/vectorstore"
)

// DefaultCandidateK is the per-source candidate width used when none is configured.
const DefaultCandidateK = 20

// TextSearcher is the lexical side of a hybrid search.
type TextSearcher interface {
	SearchContext(ctx context.Context, query string, width int, filter map[string]string) ([]domain.SearchMatch, error)
}

// Query is one search request.
type Query struct {
	Text   string
	TopK   int
	Filter map[string]string
}

// Options tunes an Orchestrator. Nil Dedup or Reranker disables that stage.
type Options struct {
	// CandidateK is the minimum number of hits fetched from each source.
	CandidateK int
	Dedup      *SoftDedupFilter
	Reranker   *MMRReranker
}

// Orchestrator runs embed -> {vector, bm25} -> aggregate -> dedup -> rerank.
type Orchestrator struct {
	embedder   embedding.Embedder
	vectors    vectorstore.VectorStore
	text       TextSearcher
	aggregator *HybridAggregator
	opts       Options
}

// NewOrchestrator wires a hybrid search pipeline.
func NewOrchestrator(embedder embedding.Embedder, vectors vectorstore.VectorStore, text TextSearcher, aggregator *HybridAggregator, opts Options) *Orchestrator {
	if opts.CandidateK <= 0 {
		opts.CandidateK = DefaultCandidateK
	}
	return &Orchestrator{
		embedder:   embedder,
		vectors:    vectors,
		text:       text,
		aggregator: aggregator,
		opts:       opts,
	}
}

// Search returns at most q.TopK ranked matches. When one side fails the
// other side's hits are used alone; only a failure of both is returned.
func (o *Orchestrator) Search(ctx context.Context, q Query) ([]domain.SearchMatch, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(q.Text) == "" {
		return nil, apperr.Invalid("query", "cannot be blank")
	}
	if q.TopK <= 0 {
		return nil, apperr.Invalid("top_k", "must be positive, got %d", q.TopK)
	}

	start := time.Now()
	width := max(q.TopK, o.opts.CandidateK)

	var vectorHits, textHits []domain.SearchMatch
	var vectorErr, textErr error

	var g errgroup.Group
	g.Go(func() error {
		vectorHits, vectorErr = o.searchVectors(ctx, q, width)
		return nil
	})
	g.Go(func() error {
		textHits, textErr = o.text.SearchContext(ctx, q.Text, width, q.Filter)
		return nil
	})
	_ = g.Wait()

	switch {
	case vectorErr != nil && textErr != nil:
		logger.ErrorContext(ctx, "hybrid search failed", "vector_error", vectorErr, "text_error", textErr)
		return nil, fmt.Errorf("hybrid search failed: %w", errors.Join(vectorErr, textErr))
	case vectorErr != nil:
		logger.WarnContext(ctx, "vector search failed, using lexical hits only", "error", vectorErr)
	case textErr != nil:
		logger.WarnContext(ctx, "lexical search failed, using vector hits only", "error", textErr)
	}

	hits := o.aggregator.Aggregate(vectorHits, textHits, width)
	if o.opts.Dedup != nil {
		hits = o.opts.Dedup.Filter(hits)
	}
	if o.opts.Reranker != nil {
		hits = o.opts.Reranker.Rerank(hits, q.TopK)
	} else if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}

	logger.InfoContext(ctx, "hybrid search completed",
		"top_k", q.TopK,
		"vector_hits", len(vectorHits),
		"text_hits", len(textHits),
		"results", len(hits),
		"duration_ms", time.Since(start).Milliseconds())
	return hits, nil
}

func (o *Orchestrator) searchVectors(ctx context.Context, q Query, width int) ([]domain.SearchMatch, error) {
	vec, err := o.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := o.vectors.Search(ctx, o.embedder.Spec().Collection(), vec, width, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	return hits, nil
}
