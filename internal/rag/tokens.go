package rag

import (
	"strings"
	"unicode/utf8"
)

// TokenCounter measures text length in model tokens. Chunk budgets are
// expressed in tokens, so the counter should match the embedding model's
// tokenizer; an approximate counter is a degraded fallback and must say so.
type TokenCounter interface {
	Count(text string) int
	// Approximate reports whether counts are estimated rather than produced
	// by the model tokenizer.
	Approximate() bool
}

// EstimateCounter approximates token counts from character length using a
// per-model chars-per-token ratio. OpenAI embedding models average about
// four characters per token for English text.
type EstimateCounter struct {
	CharsPerToken float64
}

// NewEstimateCounter returns a counter for the given ratio, defaulting to 4.
func NewEstimateCounter(charsPerToken float64) *EstimateCounter {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &EstimateCounter{CharsPerToken: charsPerToken}
}

func (c *EstimateCounter) Count(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	tokens := int(float64(n)/c.CharsPerToken + 0.5)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func (c *EstimateCounter) Approximate() bool { return true }
