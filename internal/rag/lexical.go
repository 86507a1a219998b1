package rag

import (
	"math"
	"sort"
)

// BM25 parameters. Standard values from the literature.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// LexicalCandidate is one scoring candidate for BM25: an id plus the text to
// score. Candidates are chunk-granular by construction, matching the vector
// side of hybrid retrieval.
type LexicalCandidate struct {
	ID   string
	Text string
}

// LexicalHit is a scored candidate.
type LexicalHit struct {
	ID    string
	Score float64
}

// BM25Score ranks candidates against the query. Document-frequency
// statistics are computed over the candidate set itself, so owner-scoped
// filtering upstream scopes the statistics too. A candidate containing none
// of the query terms scores exactly 0 and is omitted from the result.
func BM25Score(query string, candidates []LexicalCandidate) []LexicalHit {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 || len(candidates) == 0 {
		return nil
	}

	docTerms := make([]map[string]float64, len(candidates))
	var totalLen float64
	for i, c := range candidates {
		docTerms[i] = termFrequencies(c.Text)
		for _, f := range docTerms[i] {
			totalLen += f
		}
	}
	avgLen := totalLen / float64(len(candidates))
	if avgLen == 0 {
		return nil
	}

	// Document frequency per query term, over the (filtered) candidate set.
	df := make(map[string]int, len(queryTerms))
	for _, term := range queryTerms {
		if _, seen := df[term]; seen {
			continue
		}
		count := 0
		for i := range candidates {
			if _, ok := docTerms[i][term]; ok {
				count++
			}
		}
		df[term] = count
	}

	n := float64(len(candidates))
	hits := make([]LexicalHit, 0, len(candidates))
	for i, c := range candidates {
		var docLen float64
		for _, f := range docTerms[i] {
			docLen += f
		}

		var score float64
		for term, dfCount := range df {
			tf, ok := docTerms[i][term]
			if !ok {
				continue
			}
			idf := math.Log(1 + (n-float64(dfCount)+0.5)/(float64(dfCount)+0.5))
			norm := tf + bm25K1*(1-bm25B+bm25B*(docLen/avgLen))
			score += idf * (tf * (bm25K1 + 1)) / norm
		}
		if score > 0 {
			hits = append(hits, LexicalHit{ID: c.ID, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}
