package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound is returned by index stores when a project has no persisted index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrDimensionMismatch indicates vectors of different lengths were combined.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptIndex indicates a persisted index blob could not be decoded.
	ErrCorruptIndex = errors.New("corrupt index data")

	// ErrCircuitOpen indicates a remote service is short-circuited after repeated failures.
	ErrCircuitOpen = errors.New("circuit breaker open")

	ErrEmptyText = errors.New("no text extracted")

	ErrEmptyQuestion = errors.New("question is required")

	ErrQueueClosed = errors.New("job queue closed")
	ErrQueueFull   = errors.New("job queue full")
	ErrJobNotFound = errors.New("job not found")
)

// ExtractionError means no text could be obtained from any extraction method.
type ExtractionError struct {
	Attempts []string
	Err      error
}

func (e *ExtractionError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("extraction failed after %v: %v", e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConfigurationError reports invalid chunking or retrieval settings.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// EmbeddingServiceError wraps a failed embedding request. No partial results are returned.
type EmbeddingServiceError struct {
	Model string
	Err   error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

type GenerationServiceError struct {
	Model string
	Err   error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation service (%s): %v", e.Model, e.Err)
}

func (e *GenerationServiceError) Unwrap() error { return e.Err }

// StorageError wraps an index load, save or delete failure.
type StorageError struct {
	Op        string
	ProjectID int64
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("index %s for project %d: %v", e.Op, e.ProjectID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTerminal reports whether err will fail again if the same job is retried.
func IsTerminal(err error) bool {
	var extractErr *ExtractionError
	var cfgErr *ConfigurationError
	return errors.As(err, &extractErr) || errors.As(err, &cfgErr) || errors.Is(err, ErrCorruptIndex)
}
