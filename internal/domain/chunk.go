package domain

import (
	"strconv"
	"time"
)

// Metadata keys set by the indexing pipeline.
const (
	MetaOwnerID       = "owner_id"
	MetaSessionID     = "session_id"
	MetaOversize      = "oversize"
	MetaTokenEstimate = "token_estimate"
	MetaEnriched      = "enriched"
	MetaSpeakers      = "speakers"
	MetaIndexedAt     = "indexed_at"
)

// Chunk is the persisted unit of retrieval: a bounded segment of a document
// with its embedding and provenance metadata.
type Chunk struct {
	ID          string
	DocumentID  string
	ChunkIndex  int
	TotalChunks int

	// Text is the original, human-readable content. When the embedding input
	// was augmented with a context summary, Text stays un-augmented.
	Text string

	// ContextSummary is the optional generated context prepended to Text
	// before embedding. Empty when enrichment was skipped or failed.
	ContextSummary string

	Embedding []float32
	Metadata  map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChunkID derives the deterministic chunk id from its document and position.
// Re-indexing the same document therefore overwrites rather than duplicates.
func ChunkID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// EmbeddingText returns the text that should be embedded: the context summary
// prepended to the content when enrichment produced one.
func (c *Chunk) EmbeddingText() string {
	if c.ContextSummary == "" {
		return c.Text
	}
	return c.ContextSummary + "\n\n" + c.Text
}

// Entry is one speaker-labeled turn of a conversation document.
type Entry struct {
	ID        string
	SessionID string
	Speaker   string
	Content   string

	// RecordingKey references an uploaded audio object awaiting
	// transcription; empty for text entries.
	RecordingKey string

	CreatedAt time.Time
}

// Session groups the entries of one conversation. It is the system of record
// for conversation content; the chunk index is a rebuildable projection of it.
type Session struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
