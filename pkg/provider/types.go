package provider

import (
	"github.com/loupelabs/loupe/pkg/api"
)

// Message roles used in Request.Messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Capabilities declares what features the backend supports.
// Used by callers for early request validation.
type Capabilities struct {
	// JSONMode indicates whether the provider supports forcing JSON output
	// via a response_format parameter. Without it, callers rely on prompt
	// instructions alone and parse liberally.
	JSONMode bool

	// MaxContextWindow is the maximum token count (0 = unknown/unlimited).
	MaxContextWindow int

	// SupportedModels lists models this provider can serve.
	// Empty means any model name is passed through.
	SupportedModels []string
}

// Request is the backend-facing completion request. It contains only the
// information the provider needs, stripped of transport concerns.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`

	// ResponseJSON asks the backend for a JSON object response when the
	// adapter supports it. Adapters without JSON mode ignore it.
	ResponseJSON bool `json:"-"`
}

// Message represents a message in the provider's conversation format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the backend's complete non-streaming response.
type Response struct {
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        api.Usage `json:"usage"`
}
