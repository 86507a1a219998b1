package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeProvider      = "PROVIDER_ERROR"
	ErrCodeProviderFatal = "PROVIDER_FATAL"
	ErrCodeConsistency   = "CONSISTENCY_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingDocumentID = NewDomainError(ErrCodeValidation, "document id is required")
	ErrEmptyDocument     = NewDomainError(ErrCodeValidation, "document has no text or entries to index")
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "search query is empty")
	ErrInvalidFilter     = NewDomainError(ErrCodeValidation, "malformed search filter")
	ErrEmptySpeaker      = NewDomainError(ErrCodeValidation, "entry speaker is required")
)

// Not found errors
var (
	ErrChunkNotFound   = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrNoChunksMatched = NewDomainError(ErrCodeNotFound, "no chunks matched the filter")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Consistency errors: always fatal, never silently repaired.
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeConsistency, "embedding dimension does not match provider dimensionality")
	ErrCountMismatch     = NewDomainError(ErrCodeConsistency, "embedding count does not match chunk count")
	ErrNonFiniteVector   = NewDomainError(ErrCodeConsistency, "embedding contains non-finite values")
	ErrGranularityMix    = NewDomainError(ErrCodeConsistency, "lexical and vector search must run at the same granularity")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Provider errors. A retryable provider failure becomes terminal once the
// retry budget is exhausted; attempt count is carried in the message.
var (
	ErrProviderUnavailable = NewDomainError(ErrCodeProvider, "provider call failed after retries")
)

// ErrTranscriptionDisabled is returned by the stub transcriber.
var ErrTranscriptionDisabled = NewDomainError(ErrCodeInternalError, "transcription is not configured")
