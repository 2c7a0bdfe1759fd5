// Package embedding provides the Embedder port and its implementations.
package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks citerag/internal/embedding Embedder

import (
	"context"

	"citerag/internal/domain"
)

// Embedder turns text into vectors.
type Embedder interface {
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) (domain.Vector, error)
	// EmbedAll embeds texts and returns the vectors in input order.
	// A single failure fails the whole batch.
	EmbedAll(ctx context.Context, texts []string) ([]domain.Vector, error)
	// Spec describes the vectors this embedder produces.
	Spec() domain.EmbeddingSpec
}
