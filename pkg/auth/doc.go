// Package auth provides pluggable authentication for the loupe HTTP API.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default decides when
// all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the
// query engine. The middleware injects the caller identity into the request
// context and optionally enforces per-tier rate limits.
package auth
