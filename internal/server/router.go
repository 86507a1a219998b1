package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/reverb-labs/recall/internal/api/handlers"
	"github.com/reverb-labs/recall/internal/api/middleware"
)

type RouterConfig struct {
	APIKeys map[string]struct{}
	Log     *logrus.Logger

	SearchHandler    *handlers.SearchHandler
	SessionHandler   *handlers.SessionHandler
	DocumentHandler  *handlers.DocumentHandler
	RecordingHandler *handlers.RecordingHandler
	HealthHandler    *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 32 * 1024 * 1024

	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.SessionHandler.Create)
			r.Get("/", cfg.SessionHandler.List)
			r.Get("/{id}", cfg.SessionHandler.Get)
			r.Delete("/{id}", cfg.SessionHandler.Delete)
			r.Post("/{id}/entries", cfg.SessionHandler.AddEntry)
			r.Post("/{id}/reindex", cfg.SessionHandler.Reindex)
			r.Post("/{id}/recordings", cfg.RecordingHandler.Upload)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Index)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Get("/recordings/url", cfg.RecordingHandler.DownloadURL)
	})

	return r
}
