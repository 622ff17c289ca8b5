package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/domain"
)

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.2, 0.5, 0.1, 0.9}
	b := []float64{0.7, 0.1, 0.4, 0.3}

	ab, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	ba, err := CosineSimilarity(b, a)
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
}

func TestCosineSimilaritySelf(t *testing.T) {
	a := []float64{0.3, 0.4, 0.5}

	sim, err := CosineSimilarity(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{0.1, 0.2, 0.3}

	sim, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCosineSimilarityOppositeVectors(t *testing.T) {
	sim, err := CosineSimilarity([]float64{1, 0}, []float64{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}
