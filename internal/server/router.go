package server

import (
	"net/http"

	"github.com/faqline/faqline/internal/api"
	"github.com/faqline/faqline/internal/api/handlers"
	"github.com/faqline/faqline/internal/api/middleware"
	"github.com/faqline/faqline/internal/metrics"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AskHandler     *handlers.AskHandler
	PublishHandler *handlers.PublishHandler
	Metrics        *metrics.Metrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	if cfg.Metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware("faqline", next)
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Post("/ask", cfg.AskHandler.Ask)
	r.Post("/tenants/{tenantID}/publish", cfg.PublishHandler.Publish)

	return r
}
