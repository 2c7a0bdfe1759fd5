package embedding

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"citerag/internal/apperr"
	"citerag/internal/domain"
	"citerag/internal/textutil"
)

const (
	// HashProvider is the provider name of HashingEmbedder collections.
	HashProvider = "hash"
	hashModel    = "xxhash-tokens"
)

// HashingEmbedder is a local, deterministic embedder using signed feature
// hashing over folded tokens. Texts sharing vocabulary get similar vectors.
type HashingEmbedder struct {
	dim int
}

var _ Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder creates a hashing embedder producing dim-sized vectors.
func NewHashingEmbedder(dim int) (*HashingEmbedder, error) {
	if dim <= 0 {
		return nil, apperr.Invalid("embedding.dimension", "must be positive, got %d", dim)
	}
	return &HashingEmbedder{dim: dim}, nil
}

// Spec reports the collection this embedder writes to.
func (h *HashingEmbedder) Spec() domain.EmbeddingSpec {
	return domain.EmbeddingSpec{Provider: HashProvider, Model: hashModel, Dimension: h.dim}
}

// Embed hashes every token (and every adjacent token pair) into a bucket.
func (h *HashingEmbedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	if err := ctx.Err(); err != nil {
		return domain.Vector{}, err
	}
	values := make([]float32, h.dim)
	tokens := textutil.Tokenize(text)
	for i, tok := range tokens {
		h.add(values, tok, 1)
		if i > 0 {
			h.add(values, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return domain.Vector{Values: values}, nil
}

func (h *HashingEmbedder) add(values []float32, feature string, weight float32) {
	sum := xxhash.Sum64String(feature)
	bucket := sum % uint64(h.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	values[bucket] += weight
}

// EmbedAll embeds texts sequentially; hashing is cheap enough not to fan out.
func (h *HashingEmbedder) EmbedAll(ctx context.Context, texts []string) ([]domain.Vector, error) {
	out := make([]domain.Vector, len(texts))
	for i, text := range texts {
		v, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
