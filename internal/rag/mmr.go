package rag

import (
	"github.com/reverb-labs/recall/internal/domain"
)

// DefaultLambda weights MMR toward relevance.
const DefaultLambda = 0.7

// MMRSelect applies Maximal Marginal Relevance selection: it seeds with the
// most relevant candidate, then repeatedly picks the candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarity(candidate, selected)
//
// With lambda 1 the selection reduces exactly to the relevance ranking. No
// candidate is returned twice and at most topK are returned.
func MMRSelect(candidates []domain.SearchResult, topK int, lambda float64) []domain.SearchResult {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultLambda
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}

	// Seed with the single most relevant candidate.
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[best].Score {
			best = i
		}
	}

	selected := make([]domain.SearchResult, 0, topK)
	picked := make([]bool, len(candidates))
	selected = append(selected, candidates[best])
	picked[best] = true

	for len(selected) < topK {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			maxSim := 0.0
			for j := range selected {
				if sim := pairSimilarity(&c, &selected[j]); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*c.Score - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, candidates[bestIdx])
		picked[bestIdx] = true
	}

	return selected
}

// pairSimilarity chooses the similarity measure per pair: vector dot product
// when both items carry an embedding, term-frequency cosine over the raw text
// otherwise. The decision is made independently for every pair; a single item
// without an embedding must not push the whole set onto text similarity.
func pairSimilarity(a, b *domain.SearchResult) float64 {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		return DotProduct(a.Embedding, b.Embedding)
	}
	return TermCosineSimilarity(a.Text, b.Text)
}
