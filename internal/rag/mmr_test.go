package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
)

func TestMMRSelect_LambdaOneIsRelevanceOrder(t *testing.T) {
	candidates := []domain.SearchResult{
		{ID: "b", Score: 0.8, Embedding: []float32{0, 1, 0}},
		{ID: "a", Score: 0.9, Embedding: []float32{0, 1, 0}},
		{ID: "c", Score: 0.7, Embedding: []float32{0, 1, 0}},
	}

	out := MMRSelect(candidates, 3, 1.0)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "c", out[2].ID)
}

func TestMMRSelect_PenalizesNearDuplicates(t *testing.T) {
	// "dup" is almost identical to the seed; "other" is orthogonal but a bit
	// less relevant. With lambda 0.5 diversity wins.
	candidates := []domain.SearchResult{
		{ID: "seed", Score: 0.9, Embedding: []float32{1, 0, 0}},
		{ID: "dup", Score: 0.85, Embedding: []float32{0.999, 0.04, 0}},
		{ID: "other", Score: 0.6, Embedding: []float32{0, 1, 0}},
	}

	out := MMRSelect(candidates, 2, 0.5)
	require.Len(t, out, 2)
	assert.Equal(t, "seed", out[0].ID)
	assert.Equal(t, "other", out[1].ID)
}

func TestMMRSelect_TopKCapsOutput(t *testing.T) {
	candidates := []domain.SearchResult{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
		{ID: "c", Score: 0.7},
	}

	assert.Len(t, MMRSelect(candidates, 2, 0.7), 2)
	assert.Len(t, MMRSelect(candidates, 10, 0.7), 3)
	assert.Nil(t, MMRSelect(candidates, 0, 0.7))
	assert.Nil(t, MMRSelect(nil, 5, 0.7))
}

func TestMMRSelect_NoDuplicateSelections(t *testing.T) {
	candidates := []domain.SearchResult{
		{ID: "a", Score: 0.9, Embedding: []float32{1, 0}},
		{ID: "b", Score: 0.8, Embedding: []float32{0, 1}},
		{ID: "c", Score: 0.7, Embedding: []float32{1, 0}},
		{ID: "d", Score: 0.6, Embedding: []float32{0, 1}},
	}

	out := MMRSelect(candidates, 4, 0.5)
	require.Len(t, out, 4)
	seen := make(map[string]bool)
	for _, r := range out {
		assert.False(t, seen[r.ID], "id %s selected twice", r.ID)
		seen[r.ID] = true
	}
}

func TestMMRSelect_TextFallbackPerPair(t *testing.T) {
	// "dup" has no embedding, so its similarity to the seed is computed over
	// text; the near-identical text should push it behind "other".
	candidates := []domain.SearchResult{
		{ID: "seed", Score: 0.9, Text: "the payment service timed out again", Embedding: []float32{1, 0}},
		{ID: "dup", Score: 0.85, Text: "the payment service timed out again today"},
		{ID: "other", Score: 0.6, Text: "vacation plans for september", Embedding: []float32{0, 1}},
	}

	out := MMRSelect(candidates, 2, 0.5)
	require.Len(t, out, 2)
	assert.Equal(t, "seed", out[0].ID)
	assert.Equal(t, "other", out[1].ID)
}

func TestMMRSelect_InvalidLambdaUsesDefault(t *testing.T) {
	candidates := []domain.SearchResult{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.5},
	}

	out := MMRSelect(candidates, 2, -3)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
}
