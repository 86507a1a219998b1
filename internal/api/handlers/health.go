package handlers

import (
	"context"
	"net/http"

	"github.com/reverb-labs/recall/internal/api"
)

// HealthChecker reports storage backend health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	store HealthChecker
}

func NewHealthHandler(store HealthChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.HealthCheck(r.Context()); err != nil {
			api.Error(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}
