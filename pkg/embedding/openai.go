package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/debug"
	"github.com/loupelabs/loupe/pkg/observability"
)

// DefaultBatchSize is the maximum number of texts sent per request when
// the configuration does not specify one.
const DefaultBatchSize = 64

// Config holds settings for the OpenAI-compatible embedding client.
type Config struct {
	// BaseURL is the endpoint base, without the /v1/embeddings path.
	BaseURL string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// Model is the embedding model name (required).
	Model string

	// Dimensions pins the expected vector dimensionality. When 0 the
	// dimensionality is learned from the first response.
	Dimensions int

	// BatchSize caps the number of texts per request.
	BatchSize int

	// Timeout for each HTTP request.
	Timeout time.Duration
}

// OpenAIEmbedder calls any OpenAI-compatible /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	cfg        Config
	httpClient *http.Client

	mu   sync.RWMutex
	dims int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAI creates an embedding client for an OpenAI-compatible endpoint.
func NewOpenAI(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding: BaseURL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding: Model is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		dims:       cfg.Dimensions,
	}, nil
}

// embeddingRequest is the JSON request body for the embeddings API.
type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// embeddingResponse is the JSON response from the embeddings API.
type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed sends texts to the embeddings endpoint and returns the vectors.
// Requests are split into batches of at most BatchSize texts.
func (c *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (c *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: texts, Model: c.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %v: %w", err, api.ErrProviderFatal)
	}

	endpoint := c.cfg.BaseURL + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %v: %w", err, api.ErrProviderFatal)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("embedding connection error: %v: %w", err, api.ErrProviderTransient)
	}
	defer resp.Body.Close()
	observability.EmbeddingLatency.WithLabelValues(c.cfg.Model).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return nil, mapEmbeddingHTTPError(resp)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %v: %w", err, api.ErrProviderFatal)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response contained %d vectors for %d texts: %w",
			len(embResp.Data), len(texts), api.ErrProviderFatal)
	}

	// Order results by index.
	vectors := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range [0, %d): %w",
				d.Index, len(texts), api.ErrProviderFatal)
		}
		vectors[d.Index] = d.Embedding
	}

	// Learn dimensions from the first successful response.
	if len(vectors[0]) > 0 {
		c.mu.Lock()
		if c.dims == 0 {
			c.dims = len(vectors[0])
		}
		c.mu.Unlock()
	}

	debug.Log("embedding", "batch embedded",
		"model", c.cfg.Model,
		"texts", len(texts),
		"dims", len(vectors[0]),
		"duration", time.Since(start),
	)
	return vectors, nil
}

// Dimensions returns the dimensionality of the embedding vectors.
// Returns 0 until configured or learned from the first Embed call.
func (c *OpenAIEmbedder) Dimensions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dims
}

// Model returns the configured embedding model name.
func (c *OpenAIEmbedder) Model() string {
	return c.cfg.Model
}

// mapEmbeddingHTTPError converts a non-2xx embeddings response into an error
// wrapping the transient/fatal sentinels, mirroring the completion client.
func mapEmbeddingHTTPError(resp *http.Response) error {
	message := "embedding backend rejected request"
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var errResp embeddingErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderTransient)
	}
	return fmt.Errorf("%s (HTTP %d): %w", message, resp.StatusCode, api.ErrProviderFatal)
}
