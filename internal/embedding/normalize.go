package embedding

import (
	"context"

	"citerag/internal/domain"
)

// Normalizing scales every vector of the wrapped embedder to unit length and
// flags it as normalized, so stores can score with a plain dot product.
type Normalizing struct {
	inner Embedder
}

var _ Embedder = (*Normalizing)(nil)

// NewNormalizing wraps inner.
func NewNormalizing(inner Embedder) *Normalizing {
	return &Normalizing{inner: inner}
}

// Normalize returns v scaled to unit length. A zero vector stays zero.
func Normalize(v domain.Vector) domain.Vector {
	norm := v.Norm()
	values := make([]float32, len(v.Values))
	if norm > 0 {
		for i, x := range v.Values {
			values[i] = float32(float64(x) / norm)
		}
	}
	return domain.Vector{Values: values, Normalized: true}
}

func (n *Normalizing) Spec() domain.EmbeddingSpec {
	spec := n.inner.Spec()
	spec.Normalized = true
	return spec
}

func (n *Normalizing) Embed(ctx context.Context, text string) (domain.Vector, error) {
	v, err := n.inner.Embed(ctx, text)
	if err != nil {
		return domain.Vector{}, err
	}
	return Normalize(v), nil
}

func (n *Normalizing) EmbedAll(ctx context.Context, texts []string) ([]domain.Vector, error) {
	vectors, err := n.inner.EmbedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Vector, len(vectors))
	for i, v := range vectors {
		out[i] = Normalize(v)
	}
	return out, nil
}
