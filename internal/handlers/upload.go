package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/corpus"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/extract"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
)

// DefaultMaxUploadBytes bounds the size of an uploaded file.
const DefaultMaxUploadBytes = 32 << 20

// UploadHandler handles HTTP requests for file uploads.
type UploadHandler struct {
	engine   rag.Engine
	tracker  *metrics.Tracker
	maxBytes int64
}

// NewUploadHandler creates a new UploadHandler. tracker may be nil.
func NewUploadHandler(engine rag.Engine, tracker *metrics.Tracker) *UploadHandler {
	return &UploadHandler{engine: engine, tracker: tracker, maxBytes: DefaultMaxUploadBytes}
}

// UploadResponse represents the HTTP response payload for uploads.
//
// swagger:model UploadResponse
type UploadResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}

// ServeHTTP handles multipart uploads of a single "file" field.
//
// swagger:route POST /api/upload uploadDocument
//
// # Upload a document
//
// Extracts text from a .txt or .pdf file and ingests it as document
// doc_<uuid>_<filename>. Other file types are rejected with 415.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "invalid upload", "error", err)
		writeError(w, http.StatusBadRequest, "A multipart file field named \"file\" is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	filename := filepath.Base(header.Filename)
	fileType := strings.ToLower(filepath.Ext(filename))
	if !extract.IsSupported(fileType) {
		handleServiceError(ctx, w, &domain.UnsupportedFormatError{FileType: fileType}, "Unsupported file type")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		logger.WarnContext(ctx, "failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	text, err := extract.Extract(ctx, content, fileType)
	if err != nil {
		trackError(ctx, h.tracker, "extraction", err)
		handleServiceError(ctx, w, fmt.Errorf("failed to extract text: %w", err), "Failed to extract text")
		return
	}
	text = extract.CleanText(text)
	if text == "" {
		handleServiceError(ctx, w, &domain.ValidationError{Field: "file", Message: "no text could be extracted"}, "")
		return
	}

	documentID := corpus.NewDocumentID(filename)
	numChunks, err := h.engine.Ingest(ctx, []domain.Document{{ID: documentID, Text: text, Source: filename}})
	if err != nil {
		trackError(ctx, h.tracker, "ingest", err)
		handleServiceError(ctx, w, err, "Failed to ingest document")
		return
	}

	if h.tracker != nil {
		h.tracker.TrackDocument(ctx, documentID, numChunks, time.Since(start))
	}

	writeJSON(ctx, w, http.StatusOK, UploadResponse{
		DocumentID:    documentID,
		Filename:      filename,
		Status:        "indexed",
		ChunksCreated: numChunks,
		Message:       fmt.Sprintf("Document indexed with %d chunks", numChunks),
	})
}
