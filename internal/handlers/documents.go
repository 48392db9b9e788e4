package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/rag"
	"hybrid-rag/internal/vectorstore"
)

// DocumentsHandler lists and deletes indexed documents.
type DocumentsHandler struct {
	engine rag.Engine
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(engine rag.Engine) *DocumentsHandler {
	return &DocumentsHandler{engine: engine}
}

// DocumentListResponse represents the document listing.
//
// swagger:model DocumentListResponse
type DocumentListResponse struct {
	Documents []vectorstore.DocumentInfo `json:"documents"`
	Total     int                        `json:"total"`
}

// DeleteDocumentResponse confirms a deletion.
type DeleteDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// List handles GET /api/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.engine.ListDocuments(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []vectorstore.DocumentInfo{}
	}

	writeJSON(ctx, w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// Delete handles DELETE /api/documents/{id}. The index is rebuilt without the document.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	documentID := chi.URLParam(r, "id")
	if documentID == "" {
		handleServiceError(ctx, w, &domain.ValidationError{Field: "id", Message: "cannot be empty"}, "")
		return
	}

	deleted, err := h.engine.DeleteDocument(ctx, documentID)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to delete document")
		return
	}
	if !deleted {
		logger.InfoContext(ctx, "document not found for deletion", "document_id", documentID)
		handleServiceError(ctx, w, domain.ErrNotFound, "")
		return
	}

	writeJSON(ctx, w, http.StatusOK, DeleteDocumentResponse{DocumentID: documentID, Deleted: true})
}
