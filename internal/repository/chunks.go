package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/reverb-labs/recall/internal/domain"
)

// ChunkRepository persists chunks in Postgres with pgvector similarity
// search. It implements vectorstore.Store. Stored vectors are
// unit-normalized upstream, so cosine distance converts to similarity as
// 1 - distance.
type ChunkRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool, db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

const upsertChunkSQL = `
	INSERT INTO chunks
		(id, document_id, chunk_index, total_chunks, content, context_summary, owner_id, session_id, embedding, metadata, created_at, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		document_id     = EXCLUDED.document_id,
		chunk_index     = EXCLUDED.chunk_index,
		total_chunks    = EXCLUDED.total_chunks,
		content         = EXCLUDED.content,
		context_summary = EXCLUDED.context_summary,
		owner_id        = EXCLUDED.owner_id,
		session_id      = EXCLUDED.session_id,
		embedding       = EXCLUDED.embedding,
		metadata        = EXCLUDED.metadata,
		updated_at      = EXCLUDED.updated_at`

func (r *ChunkRepository) Upsert(ctx context.Context, chunk *domain.Chunk) error {
	return upsertOne(ctx, r.db, chunk)
}

// UpsertBatch writes all chunks in one transaction so a partial batch never
// becomes visible.
func (r *ChunkRepository) UpsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if r.pool == nil {
		for i := range chunks {
			if err := upsertOne(ctx, r.db, &chunks[i]); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	for i := range chunks {
		if err := upsertOne(ctx, tx, &chunks[i]); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	return tx.Commit(ctx)
}

func upsertOne(ctx context.Context, db dbtx, c *domain.Chunk) error {
	now := time.Now().UTC()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := db.Exec(ctx, upsertChunkSQL,
		c.ID,
		c.DocumentID,
		c.ChunkIndex,
		c.TotalChunks,
		c.Text,
		c.ContextSummary,
		c.Metadata[domain.MetaOwnerID],
		c.Metadata[domain.MetaSessionID],
		pgvector.NewVector(c.Embedding),
		c.Metadata,
		createdAt,
		now,
	)
	return err
}

func (r *ChunkRepository) Search(ctx context.Context, queryVector []float32, limit int, filter domain.Filter, minScore float64) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(queryVector)

	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding, metadata,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2 = '' OR owner_id = $2)
		  AND ($3 = '' OR document_id = $3)
		  AND 1 - (embedding <=> $1) >= $4
		ORDER BY embedding <=> $1
		LIMIT $5`,
		vec, filter.OwnerID, filter.DocumentID, minScore, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.SearchResult, 0, limit)
	for rows.Next() {
		var res domain.SearchResult
		var embedding pgvector.Vector
		if err := rows.Scan(&res.ID, &res.DocumentID, &res.ChunkIndex, &res.Text, &embedding, &res.Metadata, &res.Score); err != nil {
			return nil, err
		}
		res.Embedding = embedding.Slice()
		res.Tier = domain.TierRetrieval
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *ChunkRepository) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	var embedding pgvector.Vector
	err := r.db.QueryRow(ctx, `
		SELECT id, document_id, chunk_index, total_chunks, content, context_summary, embedding, metadata, created_at, updated_at
		FROM chunks WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.TotalChunks, &c.Text, &c.ContextSummary, &embedding, &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	c.Embedding = embedding.Slice()
	return &c, nil
}

func (r *ChunkRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// DeleteByFilter removes matching chunks. An all-zero filter is rejected so
// a bug upstream can never wipe the table.
func (r *ChunkRepository) DeleteByFilter(ctx context.Context, filter domain.Filter) (int, error) {
	if filter.IsZero() {
		return 0, domain.ErrInvalidFilter
	}
	tag, err := r.db.Exec(ctx, `
		DELETE FROM chunks
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR document_id = $2)`,
		filter.OwnerID, filter.DocumentID,
	)
	if err != nil {
		return 0, err
	}
	deleted := int(tag.RowsAffected())
	if deleted == 0 {
		return 0, domain.ErrNoChunksMatched
	}
	return deleted, nil
}

// List returns matching chunks in document order, for callers that score the
// candidate set lexically.
func (r *ChunkRepository) List(ctx context.Context, filter domain.Filter, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, chunk_index, total_chunks, content, context_summary, embedding, metadata, created_at, updated_at
		FROM chunks
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR document_id = $2)
		ORDER BY document_id, chunk_index
		LIMIT $3`,
		filter.OwnerID, filter.DocumentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.TotalChunks, &c.Text, &c.ContextSummary, &embedding, &c.Metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChunkRepository) HealthCheck(ctx context.Context) error {
	if r.pool != nil {
		return r.pool.Ping(ctx)
	}
	_, err := r.db.Exec(ctx, `SELECT 1`)
	return err
}
