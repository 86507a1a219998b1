// Package embedding defines the embedding-provider boundary: fixed-dimension
// vector generation with batching, retry, and defensive validation.
package embedding

import (
	"context"
	"math"

	"github.com/reverb-labs/recall/internal/domain"
)

// Provider converts text into fixed-dimension vectors. EmbedBatch is
// order-preserving and returns exactly one vector per input; an empty input
// returns an empty slice, not an error. Implementations enforce their own
// call timeouts.
type Provider interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// normTolerance bounds how far a supposedly unit-normalized vector may
// deviate from norm 1 before it is renormalized.
const normTolerance = 1e-3

// ValidateVector checks dimensionality and finiteness, renormalizing
// defensively when the norm drifts beyond tolerance. The vector is modified
// in place.
func ValidateVector(vec []float32, dims int) error {
	if len(vec) != dims {
		return domain.ErrDimensionMismatch
	}
	var norm float64
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.ErrNonFiniteVector
		}
		norm += f * f
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return domain.ErrNonFiniteVector
	}
	if math.Abs(norm-1) > normTolerance {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return nil
}
