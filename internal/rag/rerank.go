package rag

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
)

// RelevanceScorer scores candidate texts for relevance to a query, typically
// by a hosted rerank model or an LLM. Scores are expected in [0, 1], aligned
// positionally with the input.
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query string, texts []string) ([]float64, error)
}

// RerankConfig controls relevance reranking and result pruning.
type RerankConfig struct {
	// MaxCandidates caps how many results are sent to the scorer.
	MaxCandidates int
	// AbsoluteMin is the hard relevance floor.
	AbsoluteMin float64
	// RelativeFraction sets the floor relative to the top score once the top
	// score clears QualityBar.
	RelativeFraction float64
	QualityBar       float64
}

// DefaultRerankConfig returns the defaults used by the search pipeline.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		MaxCandidates:    20,
		AbsoluteMin:      0.05,
		RelativeFraction: 0.3,
		QualityBar:       0.4,
	}
}

// Reranker re-scores a candidate list for query relevance. The external
// scorer is tier one; on failure it degrades to a local term-overlap score,
// and every result is tagged with the tier that scored it.
type Reranker struct {
	scorer RelevanceScorer
	cfg    RerankConfig
	log    *logrus.Logger
}

// NewReranker builds a Reranker. A nil scorer skips tier one entirely.
func NewReranker(scorer RelevanceScorer, cfg RerankConfig, log *logrus.Logger) *Reranker {
	if cfg.MaxCandidates <= 0 {
		cfg = DefaultRerankConfig()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Reranker{scorer: scorer, cfg: cfg, log: log}
}

// Rerank returns the candidates re-scored and pruned by the relevance floor,
// sorted by descending relevance. The second return value reports whether the
// lexical fallback produced the scores (a degraded result).
func (r *Reranker) Rerank(ctx context.Context, query string, results []domain.SearchResult) ([]domain.SearchResult, bool) {
	if len(results) == 0 {
		return results, false
	}
	if len(results) > r.cfg.MaxCandidates {
		results = results[:r.cfg.MaxCandidates]
	}

	out := make([]domain.SearchResult, len(results))
	copy(out, results)

	degraded := true
	if r.scorer != nil {
		texts := make([]string, len(out))
		for i, res := range out {
			texts[i] = res.Text
		}
		scores, err := r.scorer.ScoreRelevance(ctx, query, texts)
		if err != nil || len(scores) != len(out) {
			r.log.WithError(err).WithField("degraded", true).
				Warn("relevance scorer unavailable, falling back to lexical overlap")
		} else {
			for i := range out {
				out[i].Score = scores[i]
				out[i].Tier = domain.TierRerankLLM
			}
			degraded = false
		}
	}

	if degraded {
		for i := range out {
			out[i].Score = OverlapF1(query, out[i].Text)
			out[i].Tier = domain.TierRerankLexical
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	// Relevance floor: keep a handful of modest results when nothing scores
	// well, but prune near-zero matches when something clearly better exists.
	floor := r.cfg.AbsoluteMin
	if len(out) > 0 && out[0].Score > r.cfg.QualityBar {
		if rel := out[0].Score * r.cfg.RelativeFraction; rel > floor {
			floor = rel
		}
	}
	kept := out[:0]
	for _, res := range out {
		if res.Score >= floor {
			kept = append(kept, res)
		}
	}
	return kept, degraded
}

// OverlapF1 is the tier-two relevance score: the harmonic mean of term
// precision and recall over stop-word-filtered terms of at least three
// characters.
func OverlapF1(query, text string) float64 {
	queryTerms := significantTerms(query)
	docTerms := significantTerms(text)
	if len(queryTerms) == 0 || len(docTerms) == 0 {
		return 0
	}

	matched := 0
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	precision := float64(matched) / float64(len(queryTerms))

	shared := 0
	for term := range docTerms {
		if _, ok := queryTerms[term]; ok {
			shared++
		}
	}
	recall := float64(shared) / float64(len(docTerms))

	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func significantTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, term := range Tokenize(text) {
		if len(term) < 3 {
			continue
		}
		if _, ok := stopWords[term]; ok {
			continue
		}
		terms[term] = struct{}{}
	}
	return terms
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "day": {}, "get": {}, "has": {}, "him": {},
	"his": {}, "how": {}, "its": {}, "may": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "did": {},
	"yes": {}, "she": {}, "that": {}, "this": {}, "with": {}, "have": {},
	"from": {}, "they": {}, "been": {}, "were": {}, "what": {}, "when": {},
	"your": {}, "said": {}, "will": {}, "about": {}, "would": {}, "there": {},
	"their": {}, "could": {}, "which": {}, "them": {}, "then": {}, "than": {},
	"some": {}, "very": {}, "just": {}, "into": {}, "like": {}, "also": {},
}
