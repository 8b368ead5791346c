package api

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeModelError      ErrorType = "model_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeUnavailable     ErrorType = "unavailable"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewModelError creates an APIError for upstream model failures.
func NewModelError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeModelError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewUnavailableError creates an APIError for temporary overload conditions.
func NewUnavailableError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnavailable,
		Message: message,
	}
}

// Sentinel errors for flow control across the engine and provider layers.
// Callers classify with errors.Is (or the helpers below), never by string.
var (
	// ErrProviderTransient marks failures worth retrying: HTTP 429, 5xx,
	// timeouts, and temporary network errors.
	ErrProviderTransient = errors.New("provider: transient failure")

	// ErrProviderFatal marks failures that retrying cannot fix: other 4xx
	// statuses and malformed upstream responses.
	ErrProviderFatal = errors.New("provider: fatal failure")

	// ErrNoEvidence indicates a query finished its loop with an empty
	// evidence set. The engine answers "insufficient information" rather
	// than surfacing this to clients.
	ErrNoEvidence = errors.New("no evidence retrieved")

	// ErrDecompositionParse indicates the decomposer output could not be
	// parsed. Non-fatal: the engine falls back to the raw question.
	ErrDecompositionParse = errors.New("decomposition output unparseable")
)

// IsTransient reports whether err wraps ErrProviderTransient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderTransient)
}

// IsFatal reports whether err wraps ErrProviderFatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProviderFatal)
}
