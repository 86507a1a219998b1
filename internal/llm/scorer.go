package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
)

const scorerSystemPrompt = `You judge how relevant text passages are to a search query.
Score each passage from 0.0 (irrelevant) to 1.0 (directly answers the query).
Respond with a JSON array of numbers only, one per passage, in the given order.
No prose, no markdown fences.`

// Scorer rates passage relevance with a chat model. It implements the
// rag.RelevanceScorer contract.
type Scorer struct {
	chat ChatClient
	log  *logrus.Logger
}

// NewScorer creates a relevance scorer backed by the given chat client.
func NewScorer(chat ChatClient, log *logrus.Logger) *Scorer {
	if log == nil {
		log = logrus.New()
	}
	return &Scorer{chat: chat, log: log}
}

// ScoreRelevance returns one score in [0, 1] per text, in input order.
func (s *Scorer) ScoreRelevance(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, t := range texts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, t)
	}

	raw, err := s.chat.Complete(ctx, scorerSystemPrompt, b.String())
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "relevance scoring failed", err)
	}

	scores, err := parseScores(raw, len(texts))
	if err != nil {
		s.log.WithError(err).WithField("raw", truncateForLog(raw)).Warn("unparseable relevance scores")
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "relevance scoring returned malformed output", err)
	}
	return scores, nil
}

// parseScores extracts a JSON number array, tolerating fenced or prefixed
// output, and clamps each value into [0, 1].
func parseScores(raw string, want int) ([]float64, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var scores []float64
	if err := json.Unmarshal([]byte(raw[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("decoding score array: %w", err)
	}
	if len(scores) != want {
		return nil, fmt.Errorf("got %d scores for %d passages", len(scores), want)
	}
	for i, v := range scores {
		if v < 0 {
			scores[i] = 0
		} else if v > 1 {
			scores[i] = 1
		}
	}
	return scores, nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
