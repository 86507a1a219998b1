package rag

import (
	"sort"

	"github.com/reverb-labs/recall/internal/domain"
)

// RRF fusion constants. The smoothing constant dampens the influence of top
// ranks; weights tune the fusion toward semantic recall.
const (
	RRFK                 = 60
	DefaultVectorWeight  = 0.7
	DefaultLexicalWeight = 0.3
)

// FuseRanked merges a vector-similarity ranked list and a lexical ranked list
// with Reciprocal Rank Fusion. An item present in only one list receives the
// contribution of that list alone. The fused score is rank-derived, not an
// absolute probability; ties are broken by the original vector-similarity
// score.
func FuseRanked(vector []domain.SearchResult, lexical []LexicalHit, vectorWeight, lexicalWeight float64) []domain.SearchResult {
	if vectorWeight <= 0 && lexicalWeight <= 0 {
		vectorWeight = DefaultVectorWeight
		lexicalWeight = DefaultLexicalWeight
	}

	type fused struct {
		result      domain.SearchResult
		score       float64
		vectorScore float64
	}
	candidates := make(map[string]*fused, len(vector)+len(lexical))
	order := make([]string, 0, len(vector)+len(lexical))

	for rank, r := range vector {
		f, ok := candidates[r.ID]
		if !ok {
			f = &fused{result: r}
			candidates[r.ID] = f
			order = append(order, r.ID)
		}
		f.score += vectorWeight / float64(RRFK+rank+1)
		f.vectorScore = r.Score
	}
	for rank, h := range lexical {
		f, ok := candidates[h.ID]
		if !ok {
			// Lexical-only hit: no text or embedding carried here; the
			// caller resolves those from its candidate map.
			f = &fused{result: domain.SearchResult{ID: h.ID}}
			candidates[h.ID] = f
			order = append(order, h.ID)
		}
		f.score += lexicalWeight / float64(RRFK+rank+1)
	}

	out := make([]domain.SearchResult, 0, len(candidates))
	for _, id := range order {
		f := candidates[id]
		f.result.Score = f.score
		f.result.Tier = domain.TierRetrieval
		out = append(out, f.result)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return candidates[out[i].ID].vectorScore > candidates[out[j].ID].vectorScore
	})
	return out
}
