package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/inkwell-ai/inkwell/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

// NewRouter builds the API router. Streaming routes carry no timeout;
// their lifetime is bounded by the client connection.
func NewRouter(logger *zap.Logger, h *Handler, requestTimeout time.Duration) *chi.Mux {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	r := chi.NewRouter()

	r.Use(metrics.Middleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))

			r.Post("/completions", h.handleComplete)
			r.Delete("/completions", h.handleCancelAll)
			r.Delete("/completions/{fingerprint}", h.handleCancel)
			r.Get("/models", h.handleModels)
			r.Get("/cache", h.handleCacheSize)
			r.Delete("/cache", h.handleCacheClear)
			r.Post("/stories", h.handleStoryStart)
			r.Get("/stories/{id}", h.handleStoryGet)
		})

		r.Post("/completions/stream", h.handleCompleteStream)
		r.Post("/stories/{id}/advance", h.handleStoryAdvance)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())

	return r
}
