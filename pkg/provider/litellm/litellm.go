package litellm

import (
	"context"
	"fmt"

	"github.com/loupelabs/loupe/pkg/provider"
	"github.com/loupelabs/loupe/pkg/provider/openaicompat"
)

// Provider implements provider.Provider for LiteLLM proxy servers. It
// delegates HTTP communication to the shared openaicompat.Client and remaps
// model names for multi-provider routing.
type Provider struct {
	cfg    Config
	client *openaicompat.Client
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates a Provider for the LiteLLM proxy at cfg.BaseURL.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("litellm: BaseURL is required")
	}

	client, err := openaicompat.New(openaicompat.Config{
		Name:    "litellm",
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		// LiteLLM forwards response_format to backends that honor it.
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "litellm"
}

// Capabilities returns what this provider supports.
func (p *Provider) Capabilities() provider.Capabilities {
	return p.client.Capabilities()
}

// Complete remaps the model name and performs non-streaming inference
// against the proxy's Chat Completions endpoint. Models absent from the
// mapping pass through unchanged.
func (p *Provider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if mapped, ok := p.cfg.ModelMapping[req.Model]; ok {
		r := *req
		r.Model = mapped
		req = &r
	}
	return p.client.Complete(ctx, req)
}

// Close releases provider resources.
func (p *Provider) Close() error {
	return p.client.Close()
}
