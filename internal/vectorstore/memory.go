package vectorstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/rag"
)

// MemoryStore is a brute-force in-memory Store. Similarity is the plain dot
// product, which equals cosine similarity because stored vectors are
// unit-normalized; scores are clamped to [-1, 1]. Useful for tests and
// single-process deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	dims   int
	chunks map[string]domain.Chunk
}

// NewMemoryStore creates a store that rejects vectors not matching dims.
func NewMemoryStore(dims int) *MemoryStore {
	return &MemoryStore{
		dims:   dims,
		chunks: make(map[string]domain.Chunk),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, chunk *domain.Chunk) error {
	if len(chunk.Embedding) != s.dims {
		return domain.ErrDimensionMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(*chunk)
	return nil
}

func (s *MemoryStore) UpsertBatch(_ context.Context, chunks []domain.Chunk) error {
	// Validate everything first so a batch is applied all-or-nothing.
	for i := range chunks {
		if len(chunks[i].Embedding) != s.dims {
			return domain.ErrDimensionMismatch
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		s.put(chunks[i])
	}
	return nil
}

func (s *MemoryStore) put(c domain.Chunk) {
	now := time.Now().UTC()
	if existing, ok := s.chunks[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.chunks[c.ID] = c
}

func (s *MemoryStore) Search(_ context.Context, queryVector []float32, limit int, filter domain.Filter, minScore float64) ([]domain.SearchResult, error) {
	if len(queryVector) != s.dims {
		return nil, domain.ErrDimensionMismatch
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.SearchResult, 0, limit)
	for _, c := range s.chunks {
		if !matches(&c, filter) {
			continue
		}
		score := rag.DotProduct(queryVector, c.Embedding)
		if score < minScore {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Embedding:  c.Embedding,
			Score:      score,
			Tier:       domain.TierRetrieval,
			Metadata:   c.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrChunkNotFound
	}
	return &c, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[id]; !ok {
		return domain.ErrChunkNotFound
	}
	delete(s.chunks, id)
	return nil
}

func (s *MemoryStore) DeleteByFilter(_ context.Context, filter domain.Filter) (int, error) {
	if filter.IsZero() {
		return 0, domain.ErrInvalidFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, c := range s.chunks {
		if matches(&c, filter) {
			delete(s.chunks, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, domain.ErrNoChunksMatched
	}
	return deleted, nil
}

func (s *MemoryStore) List(_ context.Context, filter domain.Filter, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, 0)
	for _, c := range s.chunks {
		if matches(&c, filter) {
			out = append(out, c)
		}
	}
	// Deterministic order for callers that score the whole candidate set.
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error { return nil }

func matches(c *domain.Chunk, f domain.Filter) bool {
	if f.OwnerID != "" && c.Metadata[domain.MetaOwnerID] != f.OwnerID {
		return false
	}
	if f.DocumentID != "" && c.DocumentID != f.DocumentID {
		return false
	}
	return true
}
