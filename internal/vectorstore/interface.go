package vectorstore

import (
	"context"

	"citerag/internal/domain"
)

// Entry pairs a chunk with its embedding.
type Entry struct {
	Chunk  domain.TextChunk
	Vector domain.Vector
}

// VectorStore defines the interface for vector storage operations.
// Collections are namespaced by CollectionSpec: entries of different specs are never compared.
type VectorStore interface {
	// Upsert replaces every entry of documentID in collection with entries.
	// It returns the number of entries stored.
	Upsert(ctx context.Context, collection domain.CollectionSpec, documentID string, entries []Entry) (int, error)

	// Search returns the topK entries most similar to query by cosine similarity clamped to [0,1].
	Search(ctx context.Context, collection domain.CollectionSpec, query domain.Vector, topK int, filter map[string]string) ([]domain.SearchMatch, error)

	// DeleteByDocumentID removes documentID from every collection and returns the number of entries removed.
	DeleteByDocumentID(ctx context.Context, documentID string) (int, error)

	// Count returns the number of live entries in collection.
	Count(ctx context.Context, collection domain.CollectionSpec) (int, error)
}
