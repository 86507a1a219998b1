package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reverb-labs/recall/internal/api"
	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/pagination"
	"github.com/reverb-labs/recall/internal/rag"
	"github.com/reverb-labs/recall/internal/service"
)

type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByOwner(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[domain.Session], error)
	Delete(ctx context.Context, id string) error
	AddEntry(ctx context.Context, e *domain.Entry) error
	ListEntries(ctx context.Context, sessionID string) ([]domain.Entry, error)
}

// IndexEnqueuer submits a document for background indexing.
type IndexEnqueuer interface {
	Enqueue(req service.IndexRequest) bool
}

// ChunkDeleter removes a document's chunks from the index.
type ChunkDeleter interface {
	Delete(ctx context.Context, documentID string) (int, error)
}

type SessionHandler struct {
	store   SessionStore
	queue   IndexEnqueuer
	deleter ChunkDeleter
}

func NewSessionHandler(store SessionStore, queue IndexEnqueuer, deleter ChunkDeleter) *SessionHandler {
	return &SessionHandler{store: store, queue: queue, deleter: deleter}
}

type CreateSessionRequest struct {
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AddEntryRequest struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

type EntryResponse struct {
	ID           string `json:"id"`
	SessionID    string `json:"session_id"`
	Speaker      string `json:"speaker"`
	Content      string `json:"content"`
	RecordingKey string `json:"recording_key,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func sessionToResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func entryToResponse(e *domain.Entry) EntryResponse {
	return EntryResponse{
		ID:           e.ID,
		SessionID:    e.SessionID,
		Speaker:      e.Speaker,
		Content:      e.Content,
		RecordingKey: e.RecordingKey,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		api.Error(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.Create(r.Context(), session); err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		api.Error(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	page, err := h.store.ListByOwner(r.Context(), ownerID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]SessionResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, sessionToResponse(&page.Items[i]))
	}
	api.Success(w, http.StatusOK, pagination.PageResult[SessionResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	entries, err := h.store.ListEntries(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entryResponses := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		entryResponses = append(entryResponses, entryToResponse(&entries[i]))
	}
	api.Success(w, http.StatusOK, map[string]interface{}{
		"session": sessionToResponse(session),
		"entries": entryResponses,
	})
}

// Delete removes the session, its entries, and its indexed chunks.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}
	// A never-indexed session simply has no chunks yet.
	if _, err := h.deleter.Delete(r.Context(), id); err != nil && !errors.Is(err, domain.ErrNoChunksMatched) {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddEntry appends one turn and schedules a background re-index of the
// session. Indexing failures never surface here.
func (h *SessionHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req AddEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Speaker) == "" {
		api.HandleError(w, domain.ErrEmptySpeaker)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	session, err := h.store.GetByID(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entry := &domain.Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Speaker:   req.Speaker,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddEntry(r.Context(), entry); err != nil {
		api.HandleError(w, err)
		return
	}

	h.enqueueReindex(r.Context(), session)
	api.Success(w, http.StatusCreated, entryToResponse(entry))
}

// Reindex rebuilds the session's chunk index from its entries.
func (h *SessionHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	h.enqueueReindex(r.Context(), session)
	api.Success(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *SessionHandler) enqueueReindex(ctx context.Context, session *domain.Session) {
	entries, err := h.store.ListEntries(ctx, session.ID)
	if err != nil || len(entries) == 0 {
		return
	}
	enqueueSessionIndex(h.queue, session.ID, session.OwnerID, entries)
}

// enqueueSessionIndex rebuilds the session document from its entries and
// hands it to the background queue. Entries without content (recordings
// awaiting transcription) are skipped.
func enqueueSessionIndex(queue IndexEnqueuer, sessionID, ownerID string, entries []domain.Entry) {
	turns := make([]rag.Turn, 0, len(entries))
	for _, e := range entries {
		if e.Content == "" {
			continue
		}
		turns = append(turns, rag.Turn{Speaker: e.Speaker, Content: e.Content})
	}
	if len(turns) == 0 {
		return
	}
	queue.Enqueue(service.IndexRequest{
		DocumentID: sessionID,
		OwnerID:    ownerID,
		SessionID:  sessionID,
		Turns:      turns,
	})
}
