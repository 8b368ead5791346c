package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loupelabs/loupe/pkg/api"
)

// QdrantConfig holds settings for the Qdrant HTTP backend.
type QdrantConfig struct {
	// URL is the Qdrant REST endpoint, e.g. http://localhost:6333.
	URL string

	// APIKey is sent in the api-key header when non-empty.
	APIKey string

	// Timeout for each HTTP request.
	Timeout time.Duration
}

// Qdrant implements Store using the Qdrant HTTP API.
type Qdrant struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Store = (*Qdrant)(nil)

// NewQdrant creates a Store that communicates with Qdrant via HTTP.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("vectordb: qdrant URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Qdrant{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name identifies the backend.
func (q *Qdrant) Name() string { return "qdrant" }

func (q *Qdrant) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("qdrant request failed: %v: %w", err, api.ErrProviderTransient)
	}
	return resp, nil
}

// statusError builds the error for an unexpected Qdrant status code.
// Rate limiting and server-side failures are marked transient.
func statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	err := fmt.Errorf("qdrant %s returned status %d", op, status)
	if msg != "" {
		err = fmt.Errorf("qdrant %s returned status %d: %s", op, status, msg)
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%v: %w", err, api.ErrProviderTransient)
	}
	return err
}

// EnsureCollection creates the collection if it does not already exist.
// GET /collections/{name}, then PUT /collections/{name} on 404.
func (q *Qdrant) EnsureCollection(ctx context.Context, name string, dims int) error {
	name = api.NormalizeCollectionName(name)

	resp, err := q.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", q.baseURL, name), nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return statusError("get collection", resp.StatusCode, nil)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dims,
			"distance": "Cosine",
		},
	}
	resp, err = q.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", q.baseURL, name), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError("create collection", resp.StatusCode, respBody)
	}
	return nil
}

// qdrantUpsertPoint is one point in a PUT /points request. Qdrant requires
// UUID or integer point ids, so the chunk id moves into the payload and the
// point id is a UUID derived deterministically from it.
type qdrantUpsertPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert inserts or replaces points in the named collection.
// PUT /collections/{name}/points
func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	collection = api.NormalizeCollectionName(collection)
	if len(points) == 0 {
		return nil
	}

	upserts := make([]qdrantUpsertPoint, 0, len(points))
	for _, p := range points {
		payload := map[string]any{
			"content":  p.Content,
			"chunk_id": p.ID,
		}
		for k, v := range p.Metadata {
			payload[k] = v
		}
		upserts = append(upserts, qdrantUpsertPoint{
			ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.ID)).String(),
			Vector:  p.Vector,
			Payload: payload,
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points", q.baseURL, collection)
	resp, err := q.do(ctx, http.MethodPut, url, map[string]any{"points": upserts})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError("upsert", resp.StatusCode, respBody)
	}
	return nil
}

// qdrantQueryRequest is the body for the modern /points/query endpoint.
type qdrantQueryRequest struct {
	Query          []float32 `json:"query"`
	Limit          int       `json:"limit"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
	WithPayload    bool      `json:"with_payload"`
}

// qdrantSearchRequest is the body for the legacy /points/search endpoint.
type qdrantSearchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
	WithPayload    bool      `json:"with_payload"`
}

type qdrantScoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// qdrantQueryResponse is the nested response of /points/query.
type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantScoredPoint `json:"points"`
	} `json:"result"`
}

// qdrantSearchResponse is the flat response of /points/search.
type qdrantSearchResponse struct {
	Result []qdrantScoredPoint `json:"result"`
}

// Search performs a nearest-neighbor search in the named collection.
// It prefers the modern POST /points/query endpoint and falls back to
// POST /points/search for older servers.
func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float64) ([]Match, error) {
	collection = api.NormalizeCollectionName(collection)
	if len(vector) == 0 || topK <= 0 {
		return nil, fmt.Errorf("vectordb: search requires a non-empty vector and topK > 0")
	}

	var thr *float64
	if scoreThreshold > 0 {
		thr = &scoreThreshold
	}

	queryURL := fmt.Sprintf("%s/collections/%s/points/query", q.baseURL, collection)
	resp, err := q.do(ctx, http.MethodPost, queryURL, qdrantQueryRequest{
		Query:          vector,
		Limit:          topK,
		ScoreThreshold: thr,
		WithPayload:    true,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		defer resp.Body.Close()
		var queryResp qdrantQueryResponse
		if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
			return nil, fmt.Errorf("parsing qdrant query response: %w", err)
		}
		return toMatches(queryResp.Result.Points), nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	// Older servers do not implement /points/query.
	searchURL := fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, collection)
	resp, err = q.do(ctx, http.MethodPost, searchURL, qdrantSearchRequest{
		Vector:         vector,
		Limit:          topK,
		ScoreThreshold: thr,
		WithPayload:    true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("search", resp.StatusCode, respBody)
	}

	var searchResp qdrantSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("parsing qdrant search response: %w", err)
	}
	return toMatches(searchResp.Result), nil
}

// toMatches converts scored points to Matches, extracting content and the
// original chunk id from the payload.
func toMatches(points []qdrantScoredPoint) []Match {
	matches := make([]Match, 0, len(points))
	for _, p := range points {
		match := Match{
			ID:       fmt.Sprintf("%v", p.ID),
			Score:    p.Score,
			Metadata: make(map[string]string),
		}
		if content, ok := p.Payload["content"].(string); ok {
			match.Content = content
		}
		if chunkID, ok := p.Payload["chunk_id"].(string); ok {
			match.ID = chunkID
		}
		for k, v := range p.Payload {
			if k == "content" || k == "chunk_id" {
				continue
			}
			if s, ok := v.(string); ok {
				match.Metadata[k] = s
			}
		}
		matches = append(matches, match)
	}
	return matches
}

// DeleteCollection removes a collection.
// DELETE /collections/{name}
func (q *Qdrant) DeleteCollection(ctx context.Context, name string) error {
	name = api.NormalizeCollectionName(name)

	resp, err := q.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", q.baseURL, name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError("delete collection", resp.StatusCode, respBody)
	}
	return nil
}

// Close is a no-op for the HTTP backend.
func (q *Qdrant) Close() error {
	return nil
}
