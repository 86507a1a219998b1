package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/reverb-labs/recall/internal/rag"
)

// DeterministicProvider is a pure-function provider for tests and offline
// use: the same text always produces the same unit-normalized vector, and
// texts sharing terms produce similar vectors. No network involved.
type DeterministicProvider struct {
	dims int
}

// NewDeterministicProvider creates a provider with the given dimensionality.
func NewDeterministicProvider(dims int) *DeterministicProvider {
	if dims <= 0 {
		dims = 64
	}
	return &DeterministicProvider{dims: dims}
}

func (p *DeterministicProvider) Dimensions() int { return p.dims }

func (p *DeterministicProvider) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return p.embed(text), nil
}

func (p *DeterministicProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, p.embed(t))
	}
	return out, nil
}

// embed hashes each term into a handful of vector positions so lexically
// overlapping texts land near each other, then L2-normalizes.
func (p *DeterministicProvider) embed(text string) []float32 {
	vec := make([]float64, p.dims)
	for _, term := range rag.Tokenize(text) {
		sum := sha256.Sum256([]byte(term))
		for k := 0; k < 4; k++ {
			idx := binary.BigEndian.Uint32(sum[k*8:]) % uint32(p.dims)
			sign := 1.0
			if sum[k*8+4]&1 == 1 {
				sign = -1.0
			}
			vec[idx] += sign
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, p.dims)
	if norm == 0 {
		// Empty text: a fixed unit vector keeps the contract intact.
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
