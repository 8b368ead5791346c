package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP
// status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case api.ErrorTypeServerError, api.ErrorTypeModelError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// APIErrorFromError classifies an arbitrary error into an APIError.
// Structured errors pass through; sentinel errors from the catalog, the
// vector store, and the provider taxonomy map to their types; anything
// else becomes a server error.
func APIErrorFromError(err error) *api.APIError {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, vectordb.ErrCollectionNotFound):
		return api.NewNotFoundError(err.Error())
	case api.IsTransient(err):
		return api.NewUnavailableError("upstream provider unavailable: " + err.Error())
	case api.IsFatal(err):
		return api.NewModelError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return api.NewUnavailableError("request timed out")
	default:
		return api.NewServerError(err.Error())
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// envelope from pkg/api. It sets the Content-Type header and writes the
// HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError classifies err and writes the corresponding error response.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, APIErrorFromError(err))
}
