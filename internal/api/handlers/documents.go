package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reverb-labs/recall/internal/api"
	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/rag"
	"github.com/reverb-labs/recall/internal/service"
)

// DocumentIndexer runs the indexing pipeline synchronously.
type DocumentIndexer interface {
	Index(ctx context.Context, req service.IndexRequest) (*domain.IndexStats, error)
	Delete(ctx context.Context, documentID string) (int, error)
}

// DocumentHandler indexes free-form documents outside the session flow:
// notes, imported transcripts, anything the caller already has as text.
type DocumentHandler struct {
	indexer DocumentIndexer
	queue   IndexEnqueuer
}

func NewDocumentHandler(indexer DocumentIndexer, queue IndexEnqueuer) *DocumentHandler {
	return &DocumentHandler{indexer: indexer, queue: queue}
}

type IndexDocumentRequest struct {
	DocumentID string     `json:"document_id"`
	OwnerID    string     `json:"owner_id,omitempty"`
	Text       string     `json:"text,omitempty"`
	Turns      []TurnBody `json:"turns,omitempty"`

	// Async defers the work to the background queue and returns immediately.
	Async bool `json:"async,omitempty"`
}

type TurnBody struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

type IndexStatsResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
	VectorsStored int    `json:"vectors_stored"`
	Enriched      bool   `json:"enriched"`
	DurationMS    int64  `json:"duration_ms"`
}

func (h *DocumentHandler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turns := make([]rag.Turn, 0, len(req.Turns))
	for _, t := range req.Turns {
		turns = append(turns, rag.Turn{Speaker: t.Speaker, Content: t.Content})
	}
	indexReq := service.IndexRequest{
		DocumentID: req.DocumentID,
		OwnerID:    req.OwnerID,
		Text:       req.Text,
		Turns:      turns,
	}

	if req.Async {
		if req.DocumentID == "" {
			api.HandleError(w, domain.ErrMissingDocumentID)
			return
		}
		h.queue.Enqueue(indexReq)
		api.Success(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	stats, err := h.indexer.Index(r.Context(), indexReq)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, IndexStatsResponse{
		DocumentID:    stats.DocumentID,
		ChunksCreated: stats.ChunksCreated,
		VectorsStored: stats.VectorsStored,
		Enriched:      stats.Enriched,
		DurationMS:    stats.DurationMS,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.indexer.Delete(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]int{"deleted": deleted})
}
