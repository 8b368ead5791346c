package provider

import (
	"context"
)

// Provider abstracts an LLM inference backend. The interface is
// protocol-agnostic: each adapter handles its own backend protocol
// internally.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai-compatible").
	Name() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Complete performs non-streaming inference.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
