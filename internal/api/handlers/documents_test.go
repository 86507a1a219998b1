package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/service"
)

type mockDocumentIndexer struct {
	mock.Mock
}

func (m *mockDocumentIndexer) Index(ctx context.Context, req service.IndexRequest) (*domain.IndexStats, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexStats), args.Error(1)
}

func (m *mockDocumentIndexer) Delete(ctx context.Context, documentID string) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func documentRouter(h *DocumentHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/documents", h.Index)
	r.Delete("/documents/{id}", h.Delete)
	return r
}

func TestDocumentIndex_Sync(t *testing.T) {
	indexer := new(mockDocumentIndexer)
	indexer.On("Index", mock.Anything, mock.MatchedBy(func(req service.IndexRequest) bool {
		return req.DocumentID == "doc-1" && req.OwnerID == "alice" && req.Text == "meeting notes"
	})).Return(&domain.IndexStats{DocumentID: "doc-1", ChunksCreated: 2, VectorsStored: 2}, nil)

	r := documentRouter(NewDocumentHandler(indexer, &captureQueue{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents",
		bytesBody(`{"document_id":"doc-1","owner_id":"alice","text":"meeting notes"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data IndexStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.ChunksCreated)
	indexer.AssertExpectations(t)
}

func TestDocumentIndex_Async(t *testing.T) {
	queue := &captureQueue{}
	r := documentRouter(NewDocumentHandler(new(mockDocumentIndexer), queue))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents",
		bytesBody(`{"document_id":"doc-1","text":"notes","async":true}`)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	req := queue.last()
	require.NotNil(t, req)
	assert.Equal(t, "doc-1", req.DocumentID)
}

func TestDocumentIndex_AsyncRequiresID(t *testing.T) {
	queue := &captureQueue{}
	r := documentRouter(NewDocumentHandler(new(mockDocumentIndexer), queue))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents",
		bytesBody(`{"text":"notes","async":true}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, queue.last())
}

func TestDocumentIndex_TurnsForwarded(t *testing.T) {
	indexer := new(mockDocumentIndexer)
	indexer.On("Index", mock.Anything, mock.MatchedBy(func(req service.IndexRequest) bool {
		return len(req.Turns) == 2 && req.Turns[0].Speaker == "alice"
	})).Return(&domain.IndexStats{DocumentID: "doc-1", ChunksCreated: 1}, nil)

	r := documentRouter(NewDocumentHandler(indexer, &captureQueue{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents",
		bytesBody(`{"document_id":"doc-1","turns":[{"speaker":"alice","content":"hi"},{"speaker":"bob","content":"hey"}]}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	indexer.AssertExpectations(t)
}

func TestDocumentIndex_ValidationErrorMapped(t *testing.T) {
	indexer := new(mockDocumentIndexer)
	indexer.On("Index", mock.Anything, mock.Anything).Return(nil, domain.ErrMissingDocumentID)

	r := documentRouter(NewDocumentHandler(indexer, &captureQueue{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/documents", bytesBody(`{"text":"no id"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentDelete(t *testing.T) {
	indexer := new(mockDocumentIndexer)
	indexer.On("Delete", mock.Anything, "doc-1").Return(3, nil)

	r := documentRouter(NewDocumentHandler(indexer, &captureQueue{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data["deleted"])

	indexer.On("Delete", mock.Anything, "missing").Return(0, domain.ErrNoChunksMatched)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
