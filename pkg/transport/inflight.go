package transport

import (
	"net/http"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/observability"
)

// InFlightLimit returns middleware that bounds the number of concurrently
// served requests. Requests beyond the limit are rejected immediately with
// 503 rather than queued, so retrieval loops already in flight keep their
// provider budget. A limit <= 0 disables the middleware.
func InFlightLimit(limit int) Middleware {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	sem := make(chan struct{}, limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
				next.ServeHTTP(w, r)
			default:
				observability.InFlightRejectedTotal.Inc()
				WriteAPIError(w, api.NewUnavailableError("server is at capacity, retry later"))
			}
		})
	}
}
