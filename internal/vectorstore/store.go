// Package vectorstore defines chunk persistence with similarity search.
package vectorstore

import (
	"context"

	"github.com/reverb-labs/recall/internal/domain"
)

// Store persists chunks with their vectors and metadata. Upsert on an
// existing id fully replaces vector, text, and metadata. Implementations
// must be safe for concurrent upserts to different ids; callers serialize
// same-document writes.
type Store interface {
	Upsert(ctx context.Context, chunk *domain.Chunk) error

	// UpsertBatch writes all chunks or none where the backend supports it.
	UpsertBatch(ctx context.Context, chunks []domain.Chunk) error

	// Search returns chunks ranked by similarity to the query vector.
	// Filter fields AND-combine; results under minScore are excluded before
	// the set is truncated to limit, so a weak match never displaces a
	// stronger one cut off by limit.
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.Filter, minScore float64) ([]domain.SearchResult, error)

	Get(ctx context.Context, id string) (*domain.Chunk, error)
	Delete(ctx context.Context, id string) error

	// DeleteByFilter removes all matching chunks, returning how many went.
	// Zero matches is reported as domain.ErrNoChunksMatched, not success; an
	// all-zero filter is rejected rather than deleting everything.
	DeleteByFilter(ctx context.Context, filter domain.Filter) (int, error)

	// List returns matching chunks without similarity ranking; it feeds
	// chunk-granular lexical scoring over the filtered candidate set.
	List(ctx context.Context, filter domain.Filter, limit int) ([]domain.Chunk, error)

	HealthCheck(ctx context.Context) error
}
