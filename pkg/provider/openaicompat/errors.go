package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/loupelabs/loupe/pkg/api"
)

// mapHTTPError converts an HTTP response with a non-2xx status code into an
// error wrapping the transient/fatal sentinels. It attempts to parse the
// response body as a chatErrorResponse to extract a descriptive message.
func mapHTTPError(resp *http.Response) error {
	message := extractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderTransient)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = "backend server error"
		}
		return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderTransient)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderFatal)

	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "backend resource not found"
		}
		return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderFatal)

	default:
		if message == "" {
			message = "backend rejected request"
		}
		return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderFatal)
	}
}

// mapNetworkError converts a network-level error (connection refused,
// timeout, DNS resolution failure) into a transient error. Context
// cancellation is propagated unmodified so callers can distinguish a
// cancelled request from a failing backend.
func mapNetworkError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("backend connection error: %v: %w", err, api.ErrProviderTransient)
}

// extractErrorMessage tries to parse the response body as a chatErrorResponse
// and returns the error message if found.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp chatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
