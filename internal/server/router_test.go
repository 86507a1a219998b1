package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/api/handlers"
	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/embedding"
	"github.com/reverb-labs/recall/internal/jobs"
	"github.com/reverb-labs/recall/internal/rag"
	"github.com/reverb-labs/recall/internal/service"
	"github.com/reverb-labs/recall/internal/testutil"
	"github.com/reverb-labs/recall/internal/vectorstore"
)

const testAPIKey = "test-key"

type testStack struct {
	server *httptest.Server
	store  *vectorstore.MemoryStore
	queue  *jobs.IndexQueue
}

// newTestStack wires the whole service in process: in-memory stores, the
// deterministic embedding provider, the background queue, and the real
// router with auth enabled.
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := vectorstore.NewMemoryStore(64)
	provider := embedding.NewDeterministicProvider(64)
	chunker := rag.NewChunker(rag.DefaultChunkConfig(), nil, log)

	indexer := service.NewIndexer(chunker, provider, store, nil, log)
	searcher := service.NewSearcher(provider, store, nil, log)
	queue := jobs.NewIndexQueue(indexer, 2, 16, log)
	t.Cleanup(queue.Close)

	sessions := testutil.NewMemorySessionStore()

	router := NewRouter(RouterConfig{
		APIKeys:          map[string]struct{}{testAPIKey: {}},
		Log:              log,
		SearchHandler:    handlers.NewSearchHandler(searcher),
		SessionHandler:   handlers.NewSessionHandler(sessions, queue, indexer),
		DocumentHandler:  handlers.NewDocumentHandler(indexer, queue),
		RecordingHandler: handlers.NewRecordingHandler(sessions, nil, nil, queue),
		HealthHandler:    handlers.NewHealthHandler(store),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testStack{server: srv, store: store, queue: queue}
}

func (s *testStack) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestRouter_HealthIsOpen(t *testing.T) {
	s := newTestStack(t)

	resp, err := http.Get(s.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_AuthRequired(t *testing.T) {
	s := newTestStack(t)

	resp, err := http.Post(s.server.URL+"/search", "application/json",
		bytes.NewBufferString(`{"query":"anything"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_ConversationLifecycle(t *testing.T) {
	s := newTestStack(t)

	// Create a session.
	resp, raw := s.do(t, http.MethodPost, "/sessions", `{"owner_id":"alice","title":"planning"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data handlers.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))
	sessionID := created.Data.ID
	require.NotEmpty(t, sessionID)

	// Append turns; each triggers a background re-index.
	for _, body := range []string{
		`{"speaker":"alice","content":"we agreed to do the kubernetes upgrade next tuesday"}`,
		`{"speaker":"bob","content":"I will prepare the rollback plan before then"}`,
	} {
		resp, _ = s.do(t, http.MethodPost, "/sessions/"+sessionID+"/entries", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Wait for the background indexer to materialize chunks.
	require.Eventually(t, func() bool {
		chunks, err := s.store.List(context.Background(), domain.Filter{DocumentID: sessionID}, 0)
		return err == nil && len(chunks) > 0
	}, 3*time.Second, 20*time.Millisecond)

	// Search finds the conversation.
	resp, raw = s.do(t, http.MethodPost, "/search",
		`{"query":"kubernetes upgrade","owner_id":"alice","min_score":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var searched struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &searched))
	require.NotEmpty(t, searched.Data.Results)
	assert.Equal(t, sessionID, searched.Data.Results[0].DocumentID)
	assert.Contains(t, searched.Data.Results[0].Text, "kubernetes upgrade")

	// Another owner sees nothing.
	resp, raw = s.do(t, http.MethodPost, "/search",
		`{"query":"kubernetes upgrade","owner_id":"mallory","min_score":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &searched))
	assert.Empty(t, searched.Data.Results)

	// Deleting the session removes its chunks.
	resp, _ = s.do(t, http.MethodDelete, "/sessions/"+sessionID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	chunks, err := s.store.List(context.Background(), domain.Filter{DocumentID: sessionID}, 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRouter_DocumentLifecycle(t *testing.T) {
	s := newTestStack(t)

	resp, raw := s.do(t, http.MethodPost, "/documents",
		`{"document_id":"notes-1","owner_id":"alice","text":"The retrieval benchmark finished. Latency dropped by forty percent."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var indexed struct {
		Data handlers.IndexStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &indexed))
	assert.Greater(t, indexed.Data.ChunksCreated, 0)

	resp, raw = s.do(t, http.MethodPost, "/search",
		`{"query":"retrieval benchmark latency","min_score":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var searched struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &searched))
	require.NotEmpty(t, searched.Data.Results)
	assert.Equal(t, "notes-1", searched.Data.Results[0].DocumentID)

	resp, _ = s.do(t, http.MethodDelete, "/documents/notes-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/documents/notes-1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_RecordingsWithoutStorage(t *testing.T) {
	s := newTestStack(t)

	resp, raw := s.do(t, http.MethodPost, "/sessions", `{"owner_id":"alice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data handlers.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &created))

	// Speaker is required before anything else.
	resp, _ = s.do(t, http.MethodPost, "/sessions/"+created.Data.ID+"/recordings", "audio")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// With a speaker but no object store configured, the endpoint declines.
	resp, _ = s.do(t, http.MethodPost, "/sessions/"+created.Data.ID+"/recordings?speaker=alice", "audio")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/recordings/url?key=recordings/x/y.wav", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
