// Package transport provides the HTTP middleware chain and error mapping
// for the loupe API.
//
// Handlers are plain net/http handlers; the middleware here wraps them with
// cross-cutting concerns: panic recovery, request ID assignment
// (X-Request-ID), structured request logging via log/slog, and an in-flight
// limiter that sheds load with 503 once the configured concurrency is
// reached. Authentication middleware lives in pkg/auth and metrics
// middleware in pkg/observability; all compose through the same
// func(http.Handler) http.Handler shape.
//
// Error mapping translates the error taxonomy from pkg/api (and the
// not-found sentinels of the catalog and vector store) into HTTP status
// codes and the JSON error envelope.
package transport
