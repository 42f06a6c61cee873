package patterns

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors, in [-1, 1]. Price-shape embeddings live in [0,1], so in practice the
// result lands near [0, 1]. A zero vector has no direction; any comparison
// involving one yields 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	normA := math.Sqrt(floats.Dot(a, a))
	normB := math.Sqrt(floats.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 0
	}

	return floats.Dot(a, b) / (normA * normB)
}
