package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"hybrid-rag/internal/contextutil"
	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/metrics"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// handleServiceError maps domain errors to HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "validation error", "error", err)
		writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	var formatErr *domain.UnsupportedFormatError
	if errors.As(err, &formatErr) {
		logger.WarnContext(ctx, "unsupported file type", "file_type", formatErr.FileType)
		writeError(w, http.StatusUnsupportedMediaType, formatErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		logger.WarnContext(ctx, "invalid input", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, domain.ErrExternalService):
		logger.ErrorContext(ctx, "external service error", "error", err)
		writeError(w, http.StatusBadGateway, "External service error")
	case errors.Is(err, domain.ErrBackendUnavailable):
		logger.ErrorContext(ctx, "backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Backend unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		logger.ErrorContext(ctx, "request timed out", "error", err)
		writeError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		logger.ErrorContext(ctx, "service error", "error", err)
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}

// trackError records err under errorType when a tracker is configured.
func trackError(ctx context.Context, tracker *metrics.Tracker, errorType string, err error) {
	if tracker != nil {
		tracker.TrackError(ctx, errorType, err.Error())
	}
}
