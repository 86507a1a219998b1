package rag

import (
	"math"
	"strings"
	"unicode"
)

// DotProduct computes the dot product of two vectors. For unit-normalized
// embeddings this equals cosine similarity. The result is clamped to [-1, 1]
// to absorb floating-point drift.
func DotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return clampUnit(sum)
}

// CosineSimilarity computes cosine similarity for vectors that are not known
// to be unit-normalized.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clampUnit(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// TermCosineSimilarity computes cosine similarity over term-frequency maps of
// the raw texts. It is the per-pair fallback when one side of a comparison
// carries no embedding.
func TermCosineSimilarity(a, b string) float64 {
	ta := termFrequencies(a)
	tb := termFrequencies(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for term, fa := range ta {
		na += fa * fa
		if fb, ok := tb[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range tb {
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clampUnit(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func termFrequencies(text string) map[string]float64 {
	freqs := make(map[string]float64)
	for _, term := range Tokenize(text) {
		freqs[term]++
	}
	return freqs
}

// Tokenize lowercases and splits text into alphanumeric terms.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
