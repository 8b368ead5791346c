package litellm

import "time"

// Config holds configuration for the LiteLLM provider adapter.
type Config struct {
	// BaseURL is the LiteLLM proxy URL (e.g., "http://localhost:4000").
	BaseURL string

	// APIKey for LiteLLM authentication (optional).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// ModelMapping maps requested model names to LiteLLM model identifiers.
	// For example: {"default": "azure/gpt-4o", "fast": "ollama/llama3"}.
	// If a model is not in the map, it is passed through unchanged.
	ModelMapping map[string]string
}
