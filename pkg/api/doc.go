// Package api defines the core domain and wire types for the Loupe query engine.
//
// This package provides all data types shared across the engine and its
// transport surfaces: queries, sub-queries, evidence, iteration traces,
// answers with citations, error types, and ID generation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. All types carry JSON tags matching the HTTP API wire
// format, so handlers serialize them directly.
//
// Core types:
//   - [Query]: A resolved question with per-request retrieval knobs
//   - [SubQuery]: A decomposed retrieval question produced during the loop
//   - [Evidence]: A retrieved chunk with score and source reference
//   - [IterationRecord]: Per-pass trace of retrievals and reflection
//   - [Answer]: Final synthesized text with ordered citations and trace
//   - [APIError]: Structured error with type, code, param, and message
//
// Error classification:
//
// Provider failures wrap [ErrProviderTransient] or [ErrProviderFatal];
// callers classify wrapped chains with [IsTransient] and [IsFatal] rather
// than inspecting status codes.
package api
