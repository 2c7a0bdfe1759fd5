package domain

import (
	"fmt"
	"math"
)

// Vector is a dense embedding.
type Vector struct {
	Values []float32
	// Normalized is set when the values are known to have unit length.
	Normalized bool
}

// Dim returns the vector dimension.
func (v Vector) Dim() int {
	return len(v.Values)
}

// Norm returns the euclidean length of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// EmbeddingSpec describes the provider that produced a vector.
type EmbeddingSpec struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimension  int    `json:"dimension"`
	Normalized bool   `json:"normalized"`
}

// Collection returns the vector namespace for embeddings of this spec.
func (s EmbeddingSpec) Collection() CollectionSpec {
	return CollectionSpec{Provider: s.Provider, Model: s.Model, Dimension: s.Dimension}
}

// CollectionSpec namespaces vectors: only entries with the same provider,
// model and dimension are ever compared.
type CollectionSpec struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Key returns a stable string identity for the collection.
func (c CollectionSpec) Key() string {
	return fmt.Sprintf("%s/%s/%d", c.Provider, c.Model, c.Dimension)
}
