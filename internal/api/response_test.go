package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverb-labs/recall/internal/domain"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "abc", data["id"])
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "something went wrong")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "something went wrong", resp.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", domain.ErrEmptyQuery, http.StatusBadRequest},
		{"not found", domain.ErrChunkNotFound, http.StatusNotFound},
		{"unauthorized", domain.ErrInvalidAPIKey, http.StatusUnauthorized},
		{"provider", domain.ErrProviderUnavailable, http.StatusBadGateway},
		{"provider fatal", domain.NewDomainError(domain.ErrCodeProviderFatal, "rejected"), http.StatusBadGateway},
		{"consistency", domain.ErrCountMismatch, http.StatusInternalServerError},
		{"internal", domain.ErrTranscriptionDisabled, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped domain error", wrap(domain.ErrSessionNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainErrorToHTTP(tt.err))
		})
	}
}

func wrap(err error) error {
	return &wrappedErr{err}
}

type wrappedErr struct{ err error }

func (w *wrappedErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }

func TestHandleError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, domain.ErrSessionNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "session not found")
}
