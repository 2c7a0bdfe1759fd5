package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"citerag/internal/contextutil"
	"citerag/internal/domain"
)

// Caching keeps the most recently embedded texts in an LRU cache. Cached
// vectors are shared, so callers must not modify returned values.
type Caching struct {
	inner Embedder
	cache *lru.Cache[string, domain.Vector]
}

var _ Embedder = (*Caching)(nil)

// NewCaching wraps inner with a cache holding up to size vectors.
func NewCaching(inner Embedder, size int) (*Caching, error) {
	cache, err := lru.New[string, domain.Vector](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Caching{inner: inner, cache: cache}, nil
}

func (c *Caching) Spec() domain.EmbeddingSpec {
	return c.inner.Spec()
}

func (c *Caching) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "embedding cache hit")
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.Vector{}, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// EmbedAll serves cached texts from the cache and embeds the rest in one
// inner call, keeping input order.
func (c *Caching) EmbedAll(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	var missing []string
	var positions []int
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		positions = append(positions, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedAll(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, errBatchSize(len(missing), len(vectors))
	}
	for j, v := range vectors {
		out[positions[j]] = v
		c.cache.Add(missing[j], v)
	}
	return out, nil
}
