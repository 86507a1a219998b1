package domain

// RelevanceTier records which scoring path produced a result's relevance
// score, so callers can tell a degraded path from the primary one.
type RelevanceTier string

const (
	// TierRetrieval: score comes straight from the retrieval stage.
	TierRetrieval RelevanceTier = "retrieval"
	// TierRerankLLM: score produced by the external relevance model.
	TierRerankLLM RelevanceTier = "rerank_llm"
	// TierRerankLexical: fallback term-overlap score (degraded path).
	TierRerankLexical RelevanceTier = "rerank_lexical"
)

// SearchResult is a transient retrieval hit. Score scale depends on the
// stage that produced it and is re-normalized stage by stage; it is not
// comparable across queries.
type SearchResult struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string

	// Embedding is carried through when the store returns it; the diversity
	// stage uses it for pairwise similarity.
	Embedding []float32

	Score    float64
	Tier     RelevanceTier
	Metadata map[string]string
}

// Filter restricts search candidates before scoring. Fields combine with
// logical AND; zero values match everything.
type Filter struct {
	OwnerID    string
	DocumentID string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.OwnerID == "" && f.DocumentID == ""
}

// SearchOptions configures one search call. It is immutable for the duration
// of the call; pipeline stages never read ambient configuration.
type SearchOptions struct {
	Limit    int
	MinScore float64
	Filter   Filter

	// Hybrid enables lexical retrieval fused with vector retrieval.
	Hybrid bool
	// Rerank enables the relevance reranking stage.
	Rerank bool
	// Diversify enables MMR selection after reranking.
	Diversify bool
	// Lambda balances relevance against redundancy in MMR; 1 reduces to
	// pure relevance ordering.
	Lambda float64
	// Hierarchical enables the coarse document pass before chunk retrieval.
	Hierarchical bool
}

// DefaultSearchOptions returns the defaults used when the caller leaves
// options unset.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit:     5,
		MinScore:  0.15,
		Hybrid:    false,
		Rerank:    true,
		Diversify: true,
		Lambda:    0.7,
	}
}

// Normalize fills unset numeric fields with defaults.
func (o SearchOptions) Normalize() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 5
	}
	if o.Lambda <= 0 || o.Lambda > 1 {
		o.Lambda = 0.7
	}
	return o
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	DocumentID    string
	ChunksCreated int
	VectorsStored int
	Enriched      bool
	DurationMS    int64
}
