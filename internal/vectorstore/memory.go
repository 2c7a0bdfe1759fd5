package vectorstore

import (
	"context"
	"strings"
	"sync"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
)

type storedEntry struct {
	documentID string
	chunk      domain.TextChunk
	vector     domain.Vector
}

// memoryCollection holds the entries of one CollectionSpec.
// Document slices are replaced wholesale, never mutated in place.
type memoryCollection struct {
	spec domain.CollectionSpec

	mu   sync.RWMutex
	docs map[string][]storedEntry
	size int
}

// MemoryStore is a flat, exhaustive cosine-similarity store kept in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(spec domain.CollectionSpec, create bool) *memoryCollection {
	key := spec.Key()

	s.mu.RLock()
	c, ok := s.collections[key]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[key]; ok {
		return c
	}
	c = &memoryCollection{spec: spec, docs: make(map[string][]storedEntry)}
	s.collections[key] = c
	return c
}

// Upsert replaces every entry of documentID in the collection, keyed by chunk
// index as QdrantStore point IDs are. A vector whose
// length differs from the collection dimension rejects the whole batch.
func (s *MemoryStore) Upsert(ctx context.Context, collection domain.CollectionSpec, documentID string, entries []Entry) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(documentID) == "" {
		return 0, apperr.Invalid("document_id", "cannot be blank")
	}
	if collection.Dimension <= 0 {
		return 0, apperr.Invalid("collection.dimension", "must be positive, got %d", collection.Dimension)
	}

	// Entries are keyed by chunk index; a later entry replaces an earlier one.
	stored := make([]storedEntry, 0, len(entries))
	slot := make(map[int]int, len(entries))
	for pos, e := range entries {
		if e.Vector.Dim() != collection.Dimension {
			logger.ErrorContext(ctx, "rejecting upsert with wrong vector dimension",
				"collection", collection.Key(), "document_id", documentID,
				"expected", collection.Dimension, "got", e.Vector.Dim())
			return 0, apperr.DimensionMismatch(collection.Dimension, e.Vector.Dim())
		}
		values := make([]float32, len(e.Vector.Values))
		copy(values, e.Vector.Values)
		se := storedEntry{
			documentID: documentID,
			chunk:      e.Chunk.CloneMetadata(),
			vector:     domain.Vector{Values: values, Normalized: e.Vector.Normalized},
		}
		key := e.Chunk.IndexOr(pos)
		if i, ok := slot[key]; ok {
			stored[i] = se
			continue
		}
		slot[key] = len(stored)
		stored = append(stored, se)
	}

	c := s.collection(collection, true)
	c.mu.Lock()
	c.size -= len(c.docs[documentID])
	if len(stored) == 0 {
		delete(c.docs, documentID)
	} else {
		c.docs[documentID] = stored
		c.size += len(stored)
	}
	c.mu.Unlock()

	logger.DebugContext(ctx, "upserted vectors", "collection", collection.Key(), "document_id", documentID, "count", len(stored))
	return len(stored), nil
}

// Search scores every entry of the collection against query. Scoring runs on
// a snapshot taken under the read lock, so writers are never blocked by it.
func (s *MemoryStore) Search(ctx context.Context, collection domain.CollectionSpec, query domain.Vector, topK int, filter map[string]string) ([]domain.SearchMatch, error) {
	if topK <= 0 {
		topK = 1
	}
	c := s.collection(collection, false)
	if c == nil {
		return nil, nil
	}
	if query.Dim() != collection.Dimension {
		return nil, apperr.DimensionMismatch(collection.Dimension, query.Dim())
	}

	c.mu.RLock()
	snapshot := make([][]storedEntry, 0, len(c.docs))
	for _, entries := range c.docs {
		snapshot = append(snapshot, entries)
	}
	c.mu.RUnlock()

	var matches []domain.SearchMatch
	for _, entries := range snapshot {
		for _, e := range entries {
			if len(filter) > 0 && !e.chunk.MatchesFilter(filter) {
				continue
			}
			matches = append(matches, domain.SearchMatch{
				DocumentID: e.documentID,
				Chunk:      e.chunk,
				Score:      Cosine(query, e.vector),
			})
		}
	}

	domain.SortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByDocumentID removes documentID from every collection. Deleting an
// unknown document is a no-op returning 0.
func (s *MemoryStore) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	s.mu.RLock()
	collections := make([]*memoryCollection, 0, len(s.collections))
	for _, c := range s.collections {
		collections = append(collections, c)
	}
	s.mu.RUnlock()

	var removed int
	for _, c := range collections {
		c.mu.Lock()
		if entries, ok := c.docs[documentID]; ok {
			removed += len(entries)
			c.size -= len(entries)
			delete(c.docs, documentID)
		}
		c.mu.Unlock()
	}

	if removed > 0 {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "deleted vectors", "document_id", documentID, "count", removed)
	}
	return removed, nil
}

// Count returns the number of entries in collection; unknown collections hold 0.
func (s *MemoryStore) Count(_ context.Context, collection domain.CollectionSpec) (int, error) {
	c := s.collection(collection, false)
	if c == nil {
		return 0, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size, nil
}
