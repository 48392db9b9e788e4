package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hybrid-rag/internal/handlers"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
	"hybrid-rag/internal/service"
)

// DefaultRequestTimeout bounds each request, including embedding calls made on its behalf.
const DefaultRequestTimeout = 60 * time.Second

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine         rag.Engine
	AskService     service.AskService
	Tracker        *metrics.Tracker // optional
	RateLimiter    *RateLimiter     // optional; nil disables rate limiting
	RequestTimeout time.Duration
	DefaultTopK    int
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(CORS)

	limited := func(h http.Handler) http.Handler {
		if deps.RateLimiter == nil {
			return h
		}
		return deps.RateLimiter.Middleware(h)
	}

	documents := handlers.NewDocumentsHandler(deps.Engine)
	info := handlers.NewInfoHandler(deps.Engine, deps.Tracker)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Engine))

		r.Method(http.MethodPost, "/ingest", limited(handlers.NewIngestHandler(deps.Engine, deps.Tracker)))
		r.Method(http.MethodPost, "/query", limited(handlers.NewQueryHandler(deps.Engine, deps.DefaultTopK)))
		r.Method(http.MethodPost, "/ask", limited(handlers.NewAskHandler(deps.AskService)))
		r.Method(http.MethodPost, "/upload", limited(handlers.NewUploadHandler(deps.Engine, deps.Tracker)))

		r.Get("/documents", documents.List)
		r.Delete("/documents/{id}", documents.Delete)
		r.Get("/metrics", info.Metrics)
		r.Get("/chunking-info", info.ChunkingInfo)
	})

	return r
}
