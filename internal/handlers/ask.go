package handlers

import (
	"encoding/json"
	"net/http"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/service"
)

// AskHandler handles HTTP requests for question answering.
type AskHandler struct {
	askService service.AskService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(askService service.AskService) *AskHandler {
	return &AskHandler{askService: askService}
}

// AskRequest represents the HTTP request payload for questions.
// This mirrors service.AskRequest but is defined here for HTTP layer separation.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// ServeHTTP handles HTTP requests for question answering.
//
// Ask a question and get an answer generated from the indexed documents,
// along with the passages it was drawn from.
//
// swagger:route POST /api/ask askQuestion
//
// # Ask a question
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with sources and confidence
//	'400':
//	  description: Invalid question or top_k
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: LLM or embedding service error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'503':
//	  description: Answer generation disabled
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.askService.Ask(ctx, service.AskRequest{
		Question: req.Question,
		TopK:     req.TopK,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
