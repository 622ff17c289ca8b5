package scoring

import (
	"fmt"
	"math"

	"job-match-go/internal/domain"
)

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Returns ErrDimensionMismatch when the lengths differ. When either
// vector has zero magnitude the similarity is defined as 0 rather than an
// error. The mathematical range is [-1, 1]; callers treat negative values as
// "no similarity" and do not clamp here.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: len(a)=%d len(b)=%d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
