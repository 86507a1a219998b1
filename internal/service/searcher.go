package service

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/embedding"
	"github.com/reverb-labs/recall/internal/rag"
	"github.com/reverb-labs/recall/internal/telemetry"
	"github.com/reverb-labs/recall/internal/vectorstore"
)

const (
	// overFetchFactor widens retrieval so later pruning stages have slack.
	overFetchFactor = 2

	// lexicalCandidateCap bounds how many chunks feed BM25 scoring.
	lexicalCandidateCap = 2000

	// Hierarchical mode constants: the coarse document pass runs with a
	// relaxed threshold, and final scores blend document and chunk evidence.
	coarseScoreRelax    = 0.5
	coarseDocumentLimit = 5
	docScoreWeight      = 0.7
	chunkScoreWeight    = 0.3
)

// Searcher runs the retrieval pipeline: embed the query, retrieve (optionally
// hybrid or hierarchical), rerank, diversify, truncate.
type Searcher struct {
	provider embedding.Provider
	store    vectorstore.Store
	reranker *rag.Reranker
	log      *logrus.Logger
}

// NewSearcher wires the search pipeline. A nil reranker is built without an
// external scorer, so reranking degrades to lexical overlap.
func NewSearcher(provider embedding.Provider, store vectorstore.Store, reranker *rag.Reranker, log *logrus.Logger) *Searcher {
	if log == nil {
		log = logrus.New()
	}
	if reranker == nil {
		reranker = rag.NewReranker(nil, rag.DefaultRerankConfig(), log)
	}
	return &Searcher{
		provider: provider,
		store:    store,
		reranker: reranker,
		log:      log,
	}
}

// Search executes one query with the given options. An empty candidate set
// short-circuits: no rerank or diversity calls are made, and the result is an
// empty slice, not an error.
func (s *Searcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	opts = opts.Normalize()

	ctx, span := telemetry.StartSpan(ctx, "Searcher.Search", telemetry.SpanAttributes{
		OwnerID:    opts.Filter.OwnerID,
		DocumentID: opts.Filter.DocumentID,
	})
	defer span.End()

	queryVector, err := s.provider.EmbedOne(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	candidateLimit := opts.Limit * overFetchFactor

	var candidates []domain.SearchResult
	if opts.Hierarchical {
		candidates, err = s.hierarchicalRetrieve(ctx, queryVector, candidateLimit, opts)
	} else {
		candidates, err = s.retrieve(ctx, query, queryVector, candidateLimit, opts)
	}
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.SearchResult{}, nil
	}

	if opts.Rerank {
		var degraded bool
		candidates, degraded = s.reranker.Rerank(ctx, query, candidates)
		if degraded {
			s.log.WithField("query_len", len(query)).Info("search served with lexical rerank fallback")
		}
	}

	if opts.Diversify {
		return rag.MMRSelect(candidates, opts.Limit, opts.Lambda), nil
	}
	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}
	return candidates, nil
}

// retrieve runs the vector pass and, in hybrid mode, fuses it with a BM25
// pass over the same filtered chunk set.
func (s *Searcher) retrieve(ctx context.Context, query string, queryVector []float32, limit int, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	vectorResults, err := s.store.Search(ctx, queryVector, limit, opts.Filter, opts.MinScore)
	if err != nil {
		return nil, err
	}
	if !opts.Hybrid {
		return vectorResults, nil
	}

	chunks, err := s.store.List(ctx, opts.Filter, lexicalCandidateCap)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Chunk, len(chunks))
	lexCandidates := make([]rag.LexicalCandidate, 0, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
		lexCandidates = append(lexCandidates, rag.LexicalCandidate{ID: chunks[i].ID, Text: chunks[i].Text})
	}

	lexHits := rag.BM25Score(query, lexCandidates)
	if len(lexHits) > limit {
		lexHits = lexHits[:limit]
	}

	fused := rag.FuseRanked(vectorResults, lexHits, rag.DefaultVectorWeight, rag.DefaultLexicalWeight)
	for i := range fused {
		if fused[i].Text != "" {
			continue
		}
		// Lexical-only hit: hydrate from the candidate chunk.
		c, ok := byID[fused[i].ID]
		if !ok {
			continue
		}
		fused[i].DocumentID = c.DocumentID
		fused[i].ChunkIndex = c.ChunkIndex
		fused[i].Text = c.Text
		fused[i].Embedding = c.Embedding
		fused[i].Metadata = c.Metadata
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// hierarchicalRetrieve narrows to the most relevant documents first, then
// retrieves chunks inside them. Final scores blend the document's best
// similarity with each chunk's own.
func (s *Searcher) hierarchicalRetrieve(ctx context.Context, queryVector []float32, limit int, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	coarse, err := s.store.Search(ctx, queryVector, limit*overFetchFactor*2, opts.Filter, opts.MinScore*coarseScoreRelax)
	if err != nil {
		return nil, err
	}
	if len(coarse) == 0 {
		return nil, nil
	}

	// Best chunk score per document stands in for the document's score.
	docScores := make(map[string]float64, len(coarse))
	docOrder := make([]string, 0, len(coarse))
	for _, r := range coarse {
		if _, ok := docScores[r.DocumentID]; !ok {
			docOrder = append(docOrder, r.DocumentID)
		}
		if r.Score > docScores[r.DocumentID] {
			docScores[r.DocumentID] = r.Score
		}
	}
	sort.SliceStable(docOrder, func(i, j int) bool { return docScores[docOrder[i]] > docScores[docOrder[j]] })
	if len(docOrder) > coarseDocumentLimit {
		docOrder = docOrder[:coarseDocumentLimit]
	}
	topDocs := make(map[string]struct{}, len(docOrder))
	for _, id := range docOrder {
		topDocs[id] = struct{}{}
	}

	out := make([]domain.SearchResult, 0, limit)
	for _, r := range coarse {
		if _, ok := topDocs[r.DocumentID]; !ok {
			continue
		}
		if r.Score < opts.MinScore {
			continue
		}
		r.Score = docScoreWeight*docScores[r.DocumentID] + chunkScoreWeight*r.Score
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
