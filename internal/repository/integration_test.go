package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/pagination"
	"github.com/reverb-labs/recall/internal/testutil"
)

const embeddingDims = 1536

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../database/migrations")
	t.Cleanup(pool.Close)
	return pool
}

func unitVec(axis int) []float32 {
	v := make([]float32, embeddingDims)
	v[axis%embeddingDims] = 1
	return v
}

func testChunk(id, docID, ownerID string, index int, text string, axis int) domain.Chunk {
	return domain.Chunk{
		ID:          id,
		DocumentID:  docID,
		ChunkIndex:  index,
		TotalChunks: 1,
		Text:        text,
		Embedding:   unitVec(axis),
		Metadata:    map[string]string{domain.MetaOwnerID: ownerID},
	}
}

func TestChunkRepository_RoundTrip(t *testing.T) {
	pool := setupPool(t)
	repo := NewChunkRepository(pool)
	ctx := context.Background()

	chunk := testChunk("doc:0", "doc", "alice", 0, "stored text", 0)
	chunk.ContextSummary = "a summary"
	require.NoError(t, repo.Upsert(ctx, &chunk))

	got, err := repo.Get(ctx, "doc:0")
	require.NoError(t, err)
	assert.Equal(t, "doc", got.DocumentID)
	assert.Equal(t, "stored text", got.Text)
	assert.Equal(t, "a summary", got.ContextSummary)
	assert.Equal(t, "alice", got.Metadata[domain.MetaOwnerID])
	assert.Len(t, got.Embedding, embeddingDims)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestChunkRepository_UpsertReplaces(t *testing.T) {
	pool := setupPool(t)
	repo := NewChunkRepository(pool)
	ctx := context.Background()

	chunk := testChunk("doc:0", "doc", "alice", 0, "original", 0)
	require.NoError(t, repo.Upsert(ctx, &chunk))

	replacement := testChunk("doc:0", "doc", "alice", 0, "replaced", 1)
	require.NoError(t, repo.Upsert(ctx, &replacement))

	got, err := repo.Get(ctx, "doc:0")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Text)
}

func TestChunkRepository_SearchFilteredAndRanked(t *testing.T) {
	pool := setupPool(t)
	repo := NewChunkRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []domain.Chunk{
		testChunk("a:0", "a", "alice", 0, "close match", 0),
		testChunk("a:1", "a", "alice", 1, "orthogonal", 1),
		testChunk("b:0", "b", "bob", 0, "other owner", 0),
	}))

	results, err := repo.Search(ctx, unitVec(0), 10, domain.Filter{OwnerID: "alice"}, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a:0", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.Equal(t, domain.TierRetrieval, results[0].Tier)

	// Without the score floor the orthogonal chunk shows up too.
	results, err = repo.Search(ctx, unitVec(0), 10, domain.Filter{OwnerID: "alice"}, -1)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestChunkRepository_DeleteByFilter(t *testing.T) {
	pool := setupPool(t)
	repo := NewChunkRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []domain.Chunk{
		testChunk("a:0", "a", "alice", 0, "one", 0),
		testChunk("a:1", "a", "alice", 1, "two", 1),
		testChunk("b:0", "b", "alice", 0, "keep", 2),
	}))

	n, err := repo.DeleteByFilter(ctx, domain.Filter{DocumentID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.DeleteByFilter(ctx, domain.Filter{DocumentID: "a"})
	assert.ErrorIs(t, err, domain.ErrNoChunksMatched)

	_, err = repo.DeleteByFilter(ctx, domain.Filter{})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)

	_, err = repo.Get(ctx, "b:0")
	assert.NoError(t, err)
}

func TestChunkRepository_List(t *testing.T) {
	pool := setupPool(t)
	repo := NewChunkRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []domain.Chunk{
		testChunk("b:0", "b", "alice", 0, "b zero", 0),
		testChunk("a:1", "a", "alice", 1, "a one", 1),
		testChunk("a:0", "a", "alice", 0, "a zero", 2),
	}))

	chunks, err := repo.List(ctx, domain.Filter{OwnerID: "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a:0", chunks[0].ID)
	assert.Equal(t, "a:1", chunks[1].ID)
	assert.Equal(t, "b:0", chunks[2].ID)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	pool := setupPool(t)
	repo := NewSessionRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	session := &domain.Session{ID: "sess-1", OwnerID: "alice", Title: "standup", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "standup", got.Title)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, "sess-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "sess-1"), domain.ErrSessionNotFound)
}

func TestSessionRepository_EntriesBumpSession(t *testing.T) {
	pool := setupPool(t)
	repo := NewSessionRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	session := &domain.Session{ID: "sess-1", OwnerID: "alice", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, session))

	entry := &domain.Entry{ID: "e1", SessionID: "sess-1", Speaker: "alice", Content: "hello", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.AddEntry(ctx, entry))
	entry2 := &domain.Entry{ID: "e2", SessionID: "sess-1", Speaker: "bob", Content: "hi", RecordingKey: "recordings/x.wav", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.AddEntry(ctx, entry2))

	entries, err := repo.ListEntries(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "recordings/x.wav", entries[1].RecordingKey)

	got, err := repo.GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(now) || got.UpdatedAt.Equal(now))
}

func TestSessionRepository_ListByOwnerPagination(t *testing.T) {
	pool := setupPool(t)
	repo := NewSessionRepository(pool)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, &domain.Session{
			ID: "sess-" + string(rune('a'+i)), OwnerID: "alice", CreatedAt: ts, UpdatedAt: ts,
		}))
	}

	page, err := repo.ListByOwner(ctx, "alice", nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	// Newest first.
	assert.Equal(t, "sess-e", page.Items[0].ID)
	assert.Equal(t, "sess-d", page.Items[1].ID)

	cursor, err := pagination.DecodeCursor(page.Cursor)
	require.NoError(t, err)
	page2, err := repo.ListByOwner(ctx, "alice", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.Equal(t, "sess-c", page2.Items[0].ID)
	assert.Equal(t, "sess-b", page2.Items[1].ID)

	cursor, err = pagination.DecodeCursor(page2.Cursor)
	require.NoError(t, err)
	page3, err := repo.ListByOwner(ctx, "alice", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.Cursor)
}

func TestChunkRepository_HealthCheck(t *testing.T) {
	pool := setupPool(t)
	repo := NewChunkRepository(pool)
	assert.NoError(t, repo.HealthCheck(context.Background()))
}
