package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
)

// IngestHandler handles HTTP requests for raw document ingestion.
type IngestHandler struct {
	engine  rag.Engine
	tracker *metrics.Tracker
}

// NewIngestHandler creates a new IngestHandler. tracker may be nil.
func NewIngestHandler(engine rag.Engine, tracker *metrics.Tracker) *IngestHandler {
	return &IngestHandler{engine: engine, tracker: tracker}
}

// IngestDocument is one document in an ingest request.
type IngestDocument struct {
	ID   *string `json:"id"`
	Text *string `json:"text"`
}

// IngestRequest represents the HTTP request payload for ingestion.
//
// swagger:model IngestRequest
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// IngestResponse represents the HTTP response payload for ingestion.
//
// swagger:model IngestResponse
type IngestResponse struct {
	Success           bool    `json:"success"`
	NumDocuments      int     `json:"num_documents"`
	NumChunksCreated  int     `json:"num_chunks_created"`
	IngestTimeSeconds float64 `json:"ingest_time_seconds"`
}

// ServeHTTP handles HTTP requests for ingestion.
//
// swagger:route POST /api/ingest ingestDocuments
//
// # Ingest documents
//
// Chunks, embeds and indexes the given documents. Document IDs must be new.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Documents == nil {
		writeError(w, http.StatusBadRequest, "Missing documents field")
		return
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for i, d := range req.Documents {
		if d.ID == nil || d.Text == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Each document must have id and text (document %d)", i))
			return
		}
		docs = append(docs, domain.Document{ID: *d.ID, Text: *d.Text})
	}

	start := time.Now()
	numChunks, err := h.engine.Ingest(ctx, docs)
	if err != nil {
		trackError(ctx, h.tracker, "ingest", err)
		handleServiceError(ctx, w, err, "Failed to ingest documents")
		return
	}
	elapsed := time.Since(start)

	logger.InfoContext(ctx, "documents ingested", "documents", len(docs), "chunks", numChunks)
	writeJSON(ctx, w, http.StatusOK, IngestResponse{
		Success:           true,
		NumDocuments:      len(docs),
		NumChunksCreated:  numChunks,
		IngestTimeSeconds: elapsed.Seconds(),
	})
}
