package vectorstore

import (
	"math"

	"citerag/internal/domain"
)

// Cosine returns the cosine similarity of a and b clamped to [0,1].
// When both vectors are flagged normalized the dot product is used directly.
// A zero-length vector scores 0.
func Cosine(a, b domain.Vector) float64 {
	n := len(a.Values)
	if len(b.Values) < n {
		n = len(b.Values)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a.Values[i]) * float64(b.Values[i])
	}

	score := dot
	if !(a.Normalized && b.Normalized) {
		na, nb := a.Norm(), b.Norm()
		if na == 0 || nb == 0 {
			return 0
		}
		score = dot / (na * nb)
	}
	return clamp01(score)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
