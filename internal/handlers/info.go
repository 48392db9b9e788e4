package handlers

import (
	"net/http"

	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
)

// InfoHandler serves read-only views of the engine: metrics and chunking info.
type InfoHandler struct {
	engine  rag.Engine
	tracker *metrics.Tracker
}

// NewInfoHandler creates a new InfoHandler. tracker may be nil.
func NewInfoHandler(engine rag.Engine, tracker *metrics.Tracker) *InfoHandler {
	return &InfoHandler{engine: engine, tracker: tracker}
}

// MetricsResponse combines retrieval history with service-level tracking.
//
// swagger:model MetricsResponse
type MetricsResponse struct {
	SystemMetrics  rag.MetricsSummary `json:"system_metrics"`
	IndexStats     rag.IndexStats     `json:"index_stats"`
	ServiceMetrics *metrics.Report    `json:"service_metrics,omitempty"`
}

// Metrics handles GET /api/metrics.
func (h *InfoHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.engine.Stats(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to read index stats")
		return
	}

	resp := MetricsResponse{
		SystemMetrics: h.engine.MetricsSummary(),
		IndexStats:    stats,
	}
	if h.tracker != nil {
		report := h.tracker.Report()
		resp.ServiceMetrics = &report
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// ChunkingInfo handles GET /api/chunking-info.
func (h *InfoHandler) ChunkingInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.engine.ChunkingInfo(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to compute chunking info")
		return
	}

	writeJSON(ctx, w, http.StatusOK, info)
}
