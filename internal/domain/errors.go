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
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeInvalidOperation    = "INVALID_OPERATION"
	ErrCodeInsufficientCredit  = "INSUFFICIENT_CREDIT"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeIndexUnavailable    = "INDEX_UNAVAILABLE"
	ErrCodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	ErrCodeExtractionFailed    = "EXTRACTION_FAILED"
	ErrCodeNoContent           = "NO_CONTENT"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidChatScope     = NewDomainError(ErrCodeValidation, "chat must target exactly one of module or agent")
	ErrInvalidSender        = NewDomainError(ErrCodeValidation, "invalid message sender")
	ErrEmptyMessage         = NewDomainError(ErrCodeValidation, "message must not be empty")
)

// Not found errors
var (
	ErrSessionNotFound    = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrAssignmentNotFound = NewDomainError(ErrCodeNotFound, "module assignment not found")
	ErrSettingsNotFound   = NewDomainError(ErrCodeNotFound, "chatbot settings not found for module")
	ErrAgentNotFound      = NewDomainError(ErrCodeNotFound, "agent not found")
	ErrModelNotFound      = NewDomainError(ErrCodeNotFound, "model not found in pricing catalog")
)

// Credit errors
var (
	ErrInsufficientCredit = NewDomainError(ErrCodeInsufficientCredit, "assignment balance is negative")
)

// Ingestion errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedFormat, "unsupported document format")
	ErrExtractionFailed  = NewDomainError(ErrCodeExtractionFailed, "could not extract text from document")
	ErrNoContent         = NewDomainError(ErrCodeNoContent, "document contains no extractable text")
)

// Upstream errors
var (
	ErrUpstreamUnavailable = NewDomainError(ErrCodeUpstreamUnavailable, "language model provider unavailable")
	ErrPricingUnavailable  = NewDomainError(ErrCodeUpstreamUnavailable, "model pricing unavailable")
	ErrIndexUnavailable    = NewDomainError(ErrCodeIndexUnavailable, "vector index unavailable")
)
