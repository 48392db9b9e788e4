package handlers

import (
	"context"
	"net/http"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/rag"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	engine             rag.Engine
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(engine rag.Engine) *HealthHandler {
	return &HealthHandler{
		engine:             engine,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	DocumentsIndexed int    `json:"documents_indexed"`
	TotalChunks      int    `json:"total_chunks"`
	VectorBackend    string `json:"vector_backend,omitempty"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// Returns 200 OK with index counts if the index backend answers, 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	httpStatus := http.StatusOK

	stats, err := h.engine.Stats(checkCtx)
	if err != nil {
		logger.WarnContext(ctx, "index health check failed", "error", err)
		response.Status = "unhealthy"
		response.Issues = []string{"index_unavailable"}
		httpStatus = http.StatusServiceUnavailable
	} else {
		response.DocumentsIndexed = stats.TotalDocuments
		response.TotalChunks = stats.TotalChunks
		response.VectorBackend = stats.VectorBackend
	}

	writeJSON(ctx, w, httpStatus, response)
}
