package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/reverb-labs/recall/internal/api"
	"github.com/reverb-labs/recall/internal/domain"
)

type SearchService interface {
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query      string `json:"query"`
	OwnerID    string `json:"owner_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`

	Limit    int      `json:"limit,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`

	Hybrid       bool     `json:"hybrid,omitempty"`
	Rerank       *bool    `json:"rerank,omitempty"`
	Diversify    *bool    `json:"diversify,omitempty"`
	Lambda       *float64 `json:"lambda,omitempty"`
	Hierarchical bool     `json:"hierarchical,omitempty"`
}

type SearchResultResponse struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	Tier       string            `json:"tier"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type SearchResponse struct {
	Results []SearchResultResponse `json:"results"`
}

// Search runs one retrieval query. Unset optional fields take the pipeline
// defaults; explicit false turns a stage off.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := domain.DefaultSearchOptions()
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.MinScore != nil {
		opts.MinScore = *req.MinScore
	}
	opts.Filter = domain.Filter{OwnerID: req.OwnerID, DocumentID: req.DocumentID}
	opts.Hybrid = req.Hybrid
	opts.Hierarchical = req.Hierarchical
	if req.Rerank != nil {
		opts.Rerank = *req.Rerank
	}
	if req.Diversify != nil {
		opts.Diversify = *req.Diversify
	}
	if req.Lambda != nil {
		opts.Lambda = *req.Lambda
	}

	results, err := h.svc.Search(r.Context(), req.Query, opts)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Results: make([]SearchResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchResultResponse{
			ID:         res.ID,
			DocumentID: res.DocumentID,
			ChunkIndex: res.ChunkIndex,
			Text:       res.Text,
			Score:      res.Score,
			Tier:       string(res.Tier),
			Metadata:   res.Metadata,
		})
	}
	api.Success(w, http.StatusOK, resp)
}
