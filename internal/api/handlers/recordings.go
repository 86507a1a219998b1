package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reverb-labs/recall/internal/api"
	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/transcribe"
)

// RecordingStore is the object-store slice the recordings handler needs.
type RecordingStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// RecordingHandler accepts audio uploads for a session. The audio is stored,
// transcribed, appended as an entry, and the session is queued for indexing.
type RecordingHandler struct {
	sessions    SessionStore
	objects     RecordingStore
	transcriber transcribe.Transcriber
	queue       IndexEnqueuer
}

func NewRecordingHandler(sessions SessionStore, objects RecordingStore, transcriber transcribe.Transcriber, queue IndexEnqueuer) *RecordingHandler {
	if transcriber == nil {
		transcriber = transcribe.Disabled{}
	}
	return &RecordingHandler{
		sessions:    sessions,
		objects:     objects,
		transcriber: transcriber,
		queue:       queue,
	}
}

const maxRecordingBytes = 25 * 1024 * 1024

// Upload handles POST of raw audio. Speaker comes from the query string;
// filename extension from the X-Filename header when present.
func (h *RecordingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	speaker := r.URL.Query().Get("speaker")
	if speaker == "" {
		api.HandleError(w, domain.ErrEmptySpeaker)
		return
	}

	session, err := h.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if h.objects == nil {
		api.Error(w, http.StatusServiceUnavailable, "recording storage not configured")
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxRecordingBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read audio body")
		return
	}
	if len(audio) == 0 {
		api.Error(w, http.StatusBadRequest, "empty audio body")
		return
	}
	if len(audio) > maxRecordingBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "recording too large")
		return
	}

	filename := r.Header.Get("X-Filename")
	if filename == "" {
		filename = "recording.wav"
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := "recordings/" + sessionID + "/" + uuid.NewString() + path.Ext(filename)
	if err := h.objects.Upload(r.Context(), key, contentType, bytes.NewReader(audio)); err != nil {
		api.Error(w, http.StatusBadGateway, "failed to store recording")
		return
	}

	transcript, err := h.transcriber.Transcribe(r.Context(), filename, bytes.NewReader(audio))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	entry := &domain.Entry{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Speaker:      speaker,
		Content:      transcript,
		RecordingKey: key,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.sessions.AddEntry(r.Context(), entry); err != nil {
		api.HandleError(w, err)
		return
	}

	h.enqueueReindex(r.Context(), session.ID, session.OwnerID)
	api.Success(w, http.StatusCreated, entryToResponse(entry))
}

// DownloadURL returns a presigned URL for a stored recording.
func (h *RecordingHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		api.Error(w, http.StatusBadRequest, "key is required")
		return
	}
	if h.objects == nil {
		api.Error(w, http.StatusServiceUnavailable, "recording storage not configured")
		return
	}
	url, err := h.objects.GenerateDownloadURL(r.Context(), key)
	if err != nil {
		api.Error(w, http.StatusBadGateway, "failed to generate download url")
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"url": url})
}

func (h *RecordingHandler) enqueueReindex(ctx context.Context, sessionID, ownerID string) {
	entries, err := h.sessions.ListEntries(ctx, sessionID)
	if err != nil || len(entries) == 0 {
		return
	}
	enqueueSessionIndex(h.queue, sessionID, ownerID, entries)
}
