// Package openaicompat implements provider.Provider for OpenAI-compatible
// Chat Completions backends (OpenAI, vLLM, LiteLLM, Ollama, and similar).
//
// Backend failures are classified into the transient/fatal taxonomy from
// pkg/api: rate limits, 5xx statuses, and network errors wrap
// api.ErrProviderTransient; other 4xx statuses and malformed responses wrap
// api.ErrProviderFatal. Retry policy lives above this package.
package openaicompat
