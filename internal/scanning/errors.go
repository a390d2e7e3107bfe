package scanning

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential is wrapped when the backend rejects or is missing its API key.
	ErrInvalidCredential = errors.New("invalid or missing API key")

	// ErrEmptyResponse is returned when the backend reply carries no text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// DocumentProcessingError is a rasterization failure: the document could not
// be opened, rendered or encoded.
type DocumentProcessingError struct {
	Err error
}

func (e *DocumentProcessingError) Error() string {
	return fmt.Sprintf("processing document: %v", e.Err)
}

func (e *DocumentProcessingError) Unwrap() error { return e.Err }

// ExtractionError is a failed, empty or non-conforming extraction call.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// RefinementError is a failed or unparsable correction pass.
type RefinementError struct {
	Err error
}

func (e *RefinementError) Error() string {
	return fmt.Sprintf("update failed: %v", e.Err)
}

func (e *RefinementError) Unwrap() error { return e.Err }
