package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
	// ErrBackendUnavailable is returned when the embedding provider or index backend is missing or uninitialized.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEmptyInput is returned by embedding providers for empty or whitespace-only text.
	ErrEmptyInput = errors.New("empty input text")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// DimensionMismatchError is returned when chunk and embedding counts differ,
// or when a vector does not have the index dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
	What     string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: expected %d, got %d", e.What, e.Expected, e.Got)
}

// Is makes every DimensionMismatchError match ErrInvalidInput.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrInvalidInput
}

// PersistenceError wraps a failure to save or load persisted index state.
// Callers treat it as a soft failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned by the text extractor for unknown file types.
type UnsupportedFormatError struct {
	FileType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %q", e.FileType)
}
