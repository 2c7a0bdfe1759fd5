package search

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citerag/internal/apperr"
	"citerag/internal/domain"
)

func TestNewMMRReranker_Validation(t *testing.T) {
	for _, l := range []float64{-0.5, 2} {
		_, err := NewMMRReranker(l)
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "lambda %v", l)
	}
}

func TestMMR_LambdaOneIsRelevanceOrder(t *testing.T) {
	r, err := NewMMRReranker(1)
	require.NoError(t, err)

	hits := []domain.SearchMatch{
		hit("c", 0, 0.2, "same words"),
		hit("a", 0, 0.9, "same words"),
		hit("b", 0, 0.5, "same words"),
		hit("d", 0, 0.7, "other"),
	}
	got := r.Rerank(hits, 3)
	assert.Equal(t, []string{"a#0", "d#0", "b#0"}, ids(got))
}

func TestMMR_PromotesDiversity(t *testing.T) {
	r, err := NewMMRReranker(0.5)
	require.NoError(t, err)

	hits := []domain.SearchMatch{
		hit("a", 0, 0.9, "raft leader election"),
		hit("a", 1, 0.85, "raft leader election"),
		hit("b", 0, 0.5, "disk compaction"),
	}
	got := r.Rerank(hits, 3)
	assert.Equal(t, []string{"a#0", "b#0", "a#1"}, ids(got))
	// Scores are not rewritten.
	assert.Equal(t, 0.5, got[1].Score)
}

func TestMMR_TieBreaks(t *testing.T) {
	r, err := NewMMRReranker(1)
	require.NoError(t, err)

	hits := []domain.SearchMatch{
		hit("b", 1, 0.5, "x"),
		{DocumentID: "a", Chunk: domain.TextChunk{Text: "y"}, Score: 0.5},
		hit("b", 0, 0.5, "z"),
		hit("a", 7, 0.5, "w"),
	}
	got := r.Rerank(hits, 4)
	assert.Equal(t, []string{"a#7", "a#-1", "b#0", "b#1"}, ids(got))
}

func TestMMR_Bounds(t *testing.T) {
	r, err := NewMMRReranker(0.7)
	require.NoError(t, err)

	hits := []domain.SearchMatch{hit("a", 0, 1, "x"), hit("b", 0, 0.5, "y")}
	assert.Empty(t, r.Rerank(hits, 0))
	assert.Empty(t, r.Rerank(nil, 3))
	assert.Len(t, r.Rerank(hits, 10), 2)
	assert.Len(t, r.Rerank(hits, 1), 1)
}
