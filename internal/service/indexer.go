// Package service orchestrates the indexing and search pipelines over the
// chunking, embedding, and storage layers.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/embedding"
	"github.com/reverb-labs/recall/internal/rag"
	"github.com/reverb-labs/recall/internal/telemetry"
	"github.com/reverb-labs/recall/internal/vectorstore"
)

// Enricher produces a context summary for one chunk within its document.
type Enricher interface {
	Summarize(ctx context.Context, document, chunk string) (string, error)
}

// IndexRequest is one document to index. Turns take precedence over Text
// when both are set; structured conversations chunk on turn boundaries.
type IndexRequest struct {
	DocumentID string
	OwnerID    string
	SessionID  string
	Text       string
	Turns      []rag.Turn
}

// Indexer runs the indexing pipeline: chunk, enrich, embed, store. A
// document is replaced wholesale on re-indexing.
type Indexer struct {
	chunker  *rag.Chunker
	provider embedding.Provider
	store    vectorstore.Store
	enricher Enricher
	log      *logrus.Logger
}

// NewIndexer wires the indexing pipeline. A nil enricher disables context
// enrichment; everything else is required.
func NewIndexer(chunker *rag.Chunker, provider embedding.Provider, store vectorstore.Store, enricher Enricher, log *logrus.Logger) *Indexer {
	if log == nil {
		log = logrus.New()
	}
	return &Indexer{
		chunker:  chunker,
		provider: provider,
		store:    store,
		enricher: enricher,
		log:      log,
	}
}

// Index chunks, enriches, embeds, and stores one document. Enrichment is
// best-effort: a failing enricher downgrades to un-enriched chunks without
// failing the run. Embedding failures fail the run; nothing is stored.
func (s *Indexer) Index(ctx context.Context, req IndexRequest) (*domain.IndexStats, error) {
	started := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "Indexer.Index", telemetry.SpanAttributes{
		OwnerID:    req.OwnerID,
		SessionID:  req.SessionID,
		DocumentID: req.DocumentID,
	})
	defer span.End()

	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, domain.ErrMissingDocumentID
	}

	var pieces []rag.Piece
	var fullText string
	if len(req.Turns) > 0 {
		pieces = s.chunker.ChunkTurns(req.Turns)
		fullText = joinTurns(req.Turns)
	} else {
		pieces = s.chunker.ChunkText(req.Text)
		fullText = req.Text
	}
	if len(pieces) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	enriched := s.enrich(ctx, fullText, pieces)

	chunks := s.buildChunks(req, pieces, enriched)
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].EmbeddingText()
	}

	vectors, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, domain.ErrCountMismatch
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	// Stale chunks from a longer previous version of the document must go;
	// deterministic ids only overwrite the shared prefix. Same-document runs
	// are serialized by the caller, so the gap between delete and upsert is
	// never raced by another writer of this document.
	if _, err := s.store.DeleteByFilter(ctx, domain.Filter{DocumentID: req.DocumentID}); err != nil {
		if !errors.Is(err, domain.ErrNoChunksMatched) {
			return nil, err
		}
	}
	if err := s.store.UpsertBatch(ctx, chunks); err != nil {
		return nil, err
	}

	stats := &domain.IndexStats{
		DocumentID:    req.DocumentID,
		ChunksCreated: len(chunks),
		VectorsStored: len(chunks),
		Enriched:      enriched,
		DurationMS:    time.Since(started).Milliseconds(),
	}
	s.log.WithFields(logrus.Fields{
		"document_id": stats.DocumentID,
		"chunks":      stats.ChunksCreated,
		"enriched":    stats.Enriched,
		"duration_ms": stats.DurationMS,
	}).Info("document indexed")
	return stats, nil
}

// Delete removes every chunk of a document.
func (s *Indexer) Delete(ctx context.Context, documentID string) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, domain.ErrMissingDocumentID
	}
	return s.store.DeleteByFilter(ctx, domain.Filter{DocumentID: documentID})
}

// enrich fills ContextSummary on each piece's metadata path. The first
// enricher failure stops further calls so a down provider is hit once, not
// once per chunk. Returns whether every piece got a summary.
func (s *Indexer) enrich(ctx context.Context, document string, pieces []rag.Piece) bool {
	if s.enricher == nil {
		return false
	}
	for i := range pieces {
		summary, err := s.enricher.Summarize(ctx, document, pieces[i].Text)
		if err != nil {
			s.log.WithError(err).WithField("chunk_index", i).
				Warn("chunk enrichment failed, indexing without context summaries")
			clearSummaries(pieces)
			return false
		}
		if pieces[i].Metadata == nil {
			pieces[i].Metadata = make(map[string]string)
		}
		pieces[i].Metadata[metaSummary] = summary
	}
	return true
}

// metaSummary is a transient piece-metadata key; it never reaches storage.
const metaSummary = "_summary"

func clearSummaries(pieces []rag.Piece) {
	for i := range pieces {
		delete(pieces[i].Metadata, metaSummary)
	}
}

func (s *Indexer) buildChunks(req IndexRequest, pieces []rag.Piece, enriched bool) []domain.Chunk {
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		meta := make(map[string]string, len(p.Metadata)+4)
		for k, v := range p.Metadata {
			if k == metaSummary {
				continue
			}
			meta[k] = v
		}
		if req.OwnerID != "" {
			meta[domain.MetaOwnerID] = req.OwnerID
		}
		if req.SessionID != "" {
			meta[domain.MetaSessionID] = req.SessionID
		}
		meta[domain.MetaEnriched] = strconv.FormatBool(enriched)
		meta[domain.MetaIndexedAt] = now.Format(time.RFC3339)

		chunks[i] = domain.Chunk{
			ID:             domain.ChunkID(req.DocumentID, i),
			DocumentID:     req.DocumentID,
			ChunkIndex:     i,
			TotalChunks:    len(pieces),
			Text:           p.Text,
			ContextSummary: p.Metadata[metaSummary],
			Metadata:       meta,
		}
	}
	return chunks
}

func joinTurns(turns []rag.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Speaker != "" {
			b.WriteString(t.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
