package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy for the batch pipeline.
var (
	// ErrExtraction: one document's text misses a mandatory pattern.
	// Recorded per item, siblings continue, no artifact or index entry.
	ErrExtraction = errors.New("extraction failed")
	// ErrStorage: a move/create/write on an external store failed for
	// one item. Recorded per item, siblings continue.
	ErrStorage = errors.New("storage operation failed")
	// ErrBatch: an error escaped per-item handling and aborted the
	// current batch. Retried up to the configured limit.
	ErrBatch = errors.New("batch aborted")
	// ErrFatalRun: retry limit exceeded, run stopped.
	ErrFatalRun = errors.New("run failed after retries")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewExtractionError marks a single document as unextractable, carrying
// the source name and the reason.
func NewExtractionError(source, reason string) *AppError {
	return NewAppError("EXTRACTION_ERROR", fmt.Sprintf("%s: %s", source, reason), ErrExtraction)
}

// NewStorageError marks a failed store operation for a single item.
func NewStorageError(op, target string, cause error) *AppError {
	return NewAppError("STORAGE_ERROR", fmt.Sprintf("%s %s: %v", op, target, cause), ErrStorage)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
