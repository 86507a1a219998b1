package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
)

type mockSearchService struct {
	mock.Mock
}

func (m *mockSearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func postSearch(t *testing.T, h *SearchHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func TestSearchHandler_DefaultsApplied(t *testing.T) {
	svc := new(mockSearchService)
	svc.On("Search", mock.Anything, "what did we decide", mock.MatchedBy(func(opts domain.SearchOptions) bool {
		d := domain.DefaultSearchOptions()
		return opts.Limit == d.Limit &&
			opts.MinScore == d.MinScore &&
			opts.Rerank == d.Rerank &&
			opts.Diversify == d.Diversify &&
			opts.Lambda == d.Lambda &&
			!opts.Hybrid && !opts.Hierarchical
	})).Return([]domain.SearchResult{}, nil)

	rec := postSearch(t, NewSearchHandler(svc), `{"query":"what did we decide"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearchHandler_ExplicitFalseDisablesStages(t *testing.T) {
	svc := new(mockSearchService)
	svc.On("Search", mock.Anything, "q", mock.MatchedBy(func(opts domain.SearchOptions) bool {
		return !opts.Rerank && !opts.Diversify && opts.MinScore == 0
	})).Return([]domain.SearchResult{}, nil)

	rec := postSearch(t, NewSearchHandler(svc),
		`{"query":"q","rerank":false,"diversify":false,"min_score":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearchHandler_FilterAndModes(t *testing.T) {
	svc := new(mockSearchService)
	svc.On("Search", mock.Anything, "q", mock.MatchedBy(func(opts domain.SearchOptions) bool {
		return opts.Filter.OwnerID == "alice" &&
			opts.Filter.DocumentID == "doc-1" &&
			opts.Hybrid && opts.Hierarchical &&
			opts.Limit == 3 && opts.Lambda == 0.5
	})).Return([]domain.SearchResult{}, nil)

	rec := postSearch(t, NewSearchHandler(svc),
		`{"query":"q","owner_id":"alice","document_id":"doc-1","hybrid":true,"hierarchical":true,"limit":3,"lambda":0.5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearchHandler_ResultsSerialized(t *testing.T) {
	svc := new(mockSearchService)
	svc.On("Search", mock.Anything, "q", mock.Anything).Return([]domain.SearchResult{
		{
			ID:         "doc:0",
			DocumentID: "doc",
			ChunkIndex: 0,
			Text:       "the answer",
			Score:      0.91,
			Tier:       domain.TierRerankLLM,
			Metadata:   map[string]string{"owner_id": "alice"},
		},
	}, nil)

	rec := postSearch(t, NewSearchHandler(svc), `{"query":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "doc:0", resp.Data.Results[0].ID)
	assert.Equal(t, "rerank_llm", resp.Data.Results[0].Tier)
	assert.Equal(t, 0.91, resp.Data.Results[0].Score)
}

func TestSearchHandler_InvalidBody(t *testing.T) {
	rec := postSearch(t, NewSearchHandler(new(mockSearchService)), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler_ErrorsMapped(t *testing.T) {
	svc := new(mockSearchService)
	svc.On("Search", mock.Anything, "", mock.Anything).Return(nil, domain.ErrEmptyQuery)

	rec := postSearch(t, NewSearchHandler(svc), `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc2 := new(mockSearchService)
	svc2.On("Search", mock.Anything, "q", mock.Anything).Return(nil, domain.ErrProviderUnavailable)

	rec = postSearch(t, NewSearchHandler(svc2), `{"query":"q"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
