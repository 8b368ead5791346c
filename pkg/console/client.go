package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

// Client speaks to a running loupe server over its REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL. The API key is
// sent as a Bearer token when non-empty. The request timeout is generous
// because deep queries can run multiple retrieval iterations.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// QueryParams selects the question and knobs for a query.
type QueryParams struct {
	Question      string
	Collection    string
	MaxIterations int
	Naive         bool
}

// Query runs a deep or naive query and returns the answer.
func (c *Client) Query(ctx context.Context, p QueryParams) (*api.Answer, error) {
	path := "/v1/query"
	if p.Naive {
		path = "/v1/naive-query"
	}

	req := api.QueryRequest{
		Question:   p.Question,
		Collection: p.Collection,
	}
	if p.MaxIterations > 0 && !p.Naive {
		req.MaxIterations = &p.MaxIterations
	}

	var answer api.Answer
	if err := c.post(ctx, path, req, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Collections lists the collections known to the server.
func (c *Client) Collections(ctx context.Context) ([]catalog.Collection, error) {
	var out struct {
		Collections []catalog.Collection `json:"collections"`
	}
	if err := c.get(ctx, "/v1/collections", &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

// do sends the request and decodes the response into dst. Non-200
// responses are decoded as the server's error envelope.
func (c *Client) do(req *http.Request, dst any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
			return envelope.Error
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
