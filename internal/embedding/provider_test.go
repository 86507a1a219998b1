package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
)

func TestValidateVector(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		err := ValidateVector([]float32{1, 0}, 3)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("non-finite values", func(t *testing.T) {
		assert.ErrorIs(t, ValidateVector([]float32{float32(math.NaN()), 0}, 2), domain.ErrNonFiniteVector)
		assert.ErrorIs(t, ValidateVector([]float32{float32(math.Inf(1)), 0}, 2), domain.ErrNonFiniteVector)
	})

	t.Run("zero vector", func(t *testing.T) {
		assert.ErrorIs(t, ValidateVector([]float32{0, 0}, 2), domain.ErrNonFiniteVector)
	})

	t.Run("unit vector untouched", func(t *testing.T) {
		vec := []float32{1, 0}
		require.NoError(t, ValidateVector(vec, 2))
		assert.Equal(t, []float32{1, 0}, vec)
	})

	t.Run("drifted vector renormalized in place", func(t *testing.T) {
		vec := []float32{3, 4}
		require.NoError(t, ValidateVector(vec, 2))
		assert.InDelta(t, 0.6, vec[0], 1e-6)
		assert.InDelta(t, 0.8, vec[1], 1e-6)
	})
}
