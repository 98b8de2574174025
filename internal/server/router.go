package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloo-solutions/knowctx/internal/api"
	"github.com/cloo-solutions/knowctx/internal/api/handlers"
	"github.com/cloo-solutions/knowctx/internal/api/middleware"
	"github.com/cloo-solutions/knowctx/internal/metrics"
)

type RouterConfig struct {
	Logger           *zap.Logger
	RetrievalHandler *handlers.RetrievalHandler
	StructureHandler *handlers.StructureHandler
	ContextHandler   *handlers.ContextHandler
	// LogHandler is optional.
	LogHandler *handlers.LogHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 2 * 1024 * 1024

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r.Use(middleware.RequestID(log))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(metrics.Middleware)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.OrgScope)

		r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)
		r.Post("/structures/resolve", cfg.StructureHandler.Resolve)
		r.Post("/context", cfg.ContextHandler.Prepare)
		r.Get("/traces", cfg.ContextHandler.TraceURL)
		if cfg.LogHandler != nil {
			r.Get("/retrieval-logs", cfg.LogHandler.List)
		}
	})

	return r
}
