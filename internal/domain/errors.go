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

// Is reports whether target carries the same code and message.
// Wrapped sentinels therefore still match with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
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
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnavailable         = "UPSTREAM_UNAVAILABLE"
	ErrCodeMalformed           = "MALFORMED_RESPONSE"
	ErrCodeInsufficientContext = "INSUFFICIENT_CONTEXT"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingOrgID         = NewDomainError(ErrCodeValidation, "org id is required")
	ErrMissingQuery         = NewDomainError(ErrCodeValidation, "query is required")
	ErrInvalidIntent        = NewDomainError(ErrCodeValidation, "invalid intent")
	ErrInvalidFunnelStage   = NewDomainError(ErrCodeValidation, "invalid funnel stage")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Collaborator errors. These never reach callers of the retrieval core; they
// select a fallback path.
var (
	ErrEmbeddingUnavailable      = NewDomainError(ErrCodeUnavailable, "embedding provider unavailable")
	ErrClassificationUnavailable = NewDomainError(ErrCodeUnavailable, "classification provider unavailable")
	ErrSearchUnavailable         = NewDomainError(ErrCodeUnavailable, "vector search unavailable")
	ErrGenerationUnavailable     = NewDomainError(ErrCodeUnavailable, "structure generator unavailable")
	ErrMalformedClassification   = NewDomainError(ErrCodeMalformed, "malformed classification response")
	ErrEmptyStructure            = NewDomainError(ErrCodeMalformed, "structure generator returned no sections")
)

// ErrInsufficientContext is terminal: callers must change inputs before retrying.
var ErrInsufficientContext = NewDomainError(ErrCodeInsufficientContext, "insufficient context for generation")

// Not found errors
var (
	ErrStructureNotFound = NewDomainError(ErrCodeNotFound, "structure not found")
)
