package handlers

import (
	"encoding/json"
	"net/http"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/rag"
)

// QueryHandler handles HTTP requests for hybrid retrieval.
type QueryHandler struct {
	engine      rag.Engine
	defaultTopK int
}

// NewQueryHandler creates a new QueryHandler. A non-positive defaultTopK
// falls back to rag.DefaultTopK.
func NewQueryHandler(engine rag.Engine, defaultTopK int) *QueryHandler {
	if defaultTopK <= 0 {
		defaultTopK = rag.DefaultTopK
	}
	return &QueryHandler{engine: engine, defaultTopK: defaultTopK}
}

// QueryRequest represents the HTTP request payload for retrieval.
//
// swagger:model QueryRequest
type QueryRequest struct {
	Query         *string `json:"query"`
	TopK          *int    `json:"top_k,omitempty"`
	ReturnMetrics *bool   `json:"return_metrics,omitempty"`
}

// ServeHTTP handles HTTP requests for retrieval.
//
// swagger:route POST /api/query queryChunks
//
// # Retrieve passages
//
// Runs hybrid retrieval and returns ranked chunks. top_k defaults to DEFAULT_TOP_K and
// return_metrics defaults to true.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == nil {
		writeError(w, http.StatusBadRequest, "Missing query field")
		return
	}

	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	returnMetrics := true
	if req.ReturnMetrics != nil {
		returnMetrics = *req.ReturnMetrics
	}

	result, err := h.engine.Query(ctx, *req.Query, topK, returnMetrics)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to run query")
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}
