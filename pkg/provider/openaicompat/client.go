package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/debug"
	"github.com/loupelabs/loupe/pkg/provider"
)

// Config holds the settings for an OpenAI-compatible backend.
type Config struct {
	// Name identifies the adapter in logs and metrics.
	// Defaults to "openai-compatible".
	Name string

	// BaseURL is the backend root, without the /v1 suffix. Required.
	BaseURL string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// Timeout bounds each HTTP request. Defaults to 120s.
	Timeout time.Duration

	// JSONMode declares that the backend honors response_format.
	JSONMode bool
}

// Client implements provider.Provider against an OpenAI-compatible Chat
// Completions backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
	caps       provider.Capabilities
}

// Ensure Client implements provider.Provider at compile time.
var _ provider.Provider = (*Client)(nil)

// New creates a new Client with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: BaseURL is required")
	}

	// Normalize: remove trailing slash from base URL.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Name == "" {
		cfg.Name = "openai-compatible"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		caps: provider.Capabilities{
			JSONMode: cfg.JSONMode,
		},
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Capabilities returns what this provider supports.
func (c *Client) Capabilities() provider.Capabilities {
	return c.caps
}

// Complete performs non-streaming inference against the Chat Completions endpoint.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	chatReq := chatRequest{
		Model:       req.Model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if req.ResponseJSON && c.cfg.JSONMode {
		chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	// Marshal request body.
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %v: %w", err, api.ErrProviderFatal)
	}

	// Build HTTP request.
	url := c.cfg.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %v: %w", err, api.ErrProviderFatal)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	// Send request.
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(ctx, err)
	}
	defer httpResp.Body.Close()

	// Check for error status codes.
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	// Parse response.
	var chatResp chatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("parsing backend response: %v: %w", err, api.ErrProviderFatal)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("backend returned no choices: %w", api.ErrProviderFatal)
	}

	choice := chatResp.Choices[0]
	debug.Log("provider", "chat completion",
		"name", c.cfg.Name,
		"model", chatResp.Model,
		"finish_reason", choice.FinishReason,
		"tokens", chatResp.Usage.TotalTokens,
	)
	return &provider.Response{
		Content:      choice.Message.Content,
		Model:        chatResp.Model,
		FinishReason: choice.FinishReason,
		Usage: api.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
