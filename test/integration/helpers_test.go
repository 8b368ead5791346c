// Package integration provides end-to-end tests for the loupe API.
//
// Tests run against a real loupe HTTP server backed by a mock
// OpenAI-compatible backend, both started in-process using
// net/http/httptest. The mock backend answers the engine's retrieval
// prompts deterministically and serves bag-of-words embeddings, so
// ingestion and the full query loop run for real.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loupelabs/loupe/pkg/catalog/memory"
	"github.com/loupelabs/loupe/pkg/embedding"
	"github.com/loupelabs/loupe/pkg/engine"
	"github.com/loupelabs/loupe/pkg/ingest"
	"github.com/loupelabs/loupe/pkg/mcpserver"
	"github.com/loupelabs/loupe/pkg/observability"
	"github.com/loupelabs/loupe/pkg/provider/openaicompat"
	"github.com/loupelabs/loupe/pkg/transport"
	transporthttp "github.com/loupelabs/loupe/pkg/transport/http"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the loupe server and mock backend for testing.
// Handler is the middleware-wrapped API handler, retained so individual
// tests can serve it behind additional middleware.
type TestEnvironment struct {
	LoupeServer *httptest.Server
	MockBackend *httptest.Server
	Handler     http.Handler
}

// TestMain starts the mock backend and loupe server before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment creates the mock backend and a loupe server wired
// to it, with the production middleware stack, metrics, and MCP mount.
func setupTestEnvironment() *TestEnvironment {
	mockBackend := startMockBackend()

	prov, err := openaicompat.New(openaicompat.Config{BaseURL: mockBackend.URL})
	if err != nil {
		panic(fmt.Sprintf("creating provider: %v", err))
	}

	embedder, err := embedding.NewOpenAI(embedding.Config{
		BaseURL: mockBackend.URL,
		Model:   "mock-embedding",
	})
	if err != nil {
		panic(fmt.Sprintf("creating embedder: %v", err))
	}

	store := vectordb.NewMemory()
	cat := memory.New()

	eng, err := engine.New(prov, embedder, store, cat, engine.Config{
		Model:                "mock-model",
		MaxIterations:        3,
		MaxSubQueries:        3,
		TopK:                 5,
		MaxEvidence:          10,
		RetrievalConcurrency: 2,
		Routing:              true,
		DefaultCollection:    "default",
	})
	if err != nil {
		panic(fmt.Sprintf("creating engine: %v", err))
	}

	pipeline, err := ingest.NewPipeline(embedder, store, cat, ingest.PipelineConfig{
		ChunkSize:    200,
		ChunkOverlap: 40,
	})
	if err != nil {
		panic(fmt.Sprintf("creating pipeline: %v", err))
	}
	tracker := ingest.NewTracker(time.Hour)

	restAPI := transporthttp.NewAPI(eng, pipeline, tracker, cat, transporthttp.APIConfig{
		DefaultCollection: "default",
	})
	mux := restAPI.Routes()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/mcp", mcpserver.New(eng, cat).Handler())

	handler := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(slog.Default()),
		observability.MetricsMiddleware,
	)(mux)

	return &TestEnvironment{
		LoupeServer: httptest.NewServer(handler),
		MockBackend: mockBackend,
		Handler:     handler,
	}
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.LoupeServer != nil {
		env.LoupeServer.Close()
	}
	if env.MockBackend != nil {
		env.MockBackend.Close()
	}
}

// BaseURL returns the loupe server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.LoupeServer.URL
}

// --- HTTP helpers ---

// postJSON sends a POST request with JSON body and returns the response.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// getURL sends a GET request and returns the response.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

// --- Ingestion helpers ---

// taskView mirrors the task JSON returned by the ingest endpoints.
type taskView struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

// ingestFiles writes docs to a temp dir, ingests them into collection via
// the HTTP API, and waits for the task to complete. A failed task aborts
// the test.
func ingestFiles(t *testing.T, collection string, docs map[string]string) taskView {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, len(docs))
	for name, content := range docs {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
		paths = append(paths, path)
	}

	resp := postJSON(t, testEnv.BaseURL()+"/v1/ingest/files", map[string]any{
		"paths":      paths,
		"collection": collection,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("ingest returned %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var accepted struct {
		TaskID string `json:"task_id"`
	}
	decodeJSON(t, resp, &accepted)

	task := waitForTask(t, accepted.TaskID)
	if task.State != "completed" {
		t.Fatalf("ingestion into %s failed: %s", collection, task.Error)
	}
	return task
}

// waitForTask polls the task endpoint until the task finishes.
func waitForTask(t *testing.T, id string) taskView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp := getURL(t, testEnv.BaseURL()+"/v1/ingest/tasks/"+id)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("task endpoint returned %d: %s", resp.StatusCode, readBody(t, resp))
		}
		var task taskView
		decodeJSON(t, resp, &task)
		if task.State == "completed" || task.State == "failed" {
			return task
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s still %q after deadline", id, task.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// --- Mock backend ---

// startMockBackend creates an httptest server that mimics an
// OpenAI-compatible backend. Chat completions are classified by the
// engine's prompt texts; embeddings are bag-of-words vectors, so texts
// sharing words rank close to each other.
func startMockBackend() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleMockChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", handleMockEmbeddings)
	return httptest.NewServer(mux)
}

func handleMockChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			prompt = req.Messages[i].Content
			break
		}
	}

	reply := mockReply(prompt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens": len(prompt) / 4, "completion_tokens": len(reply) / 4, "total_tokens": len(prompt)/4 + len(reply)/4,
		},
	})
}

// mockReply classifies the prompt and produces output the engine's
// parsers accept. Questions containing "iterate" drive one extra pass
// through the reflection loop.
func mockReply(prompt string) string {
	switch {
	case strings.Contains(prompt, "break down the original question"):
		q := promptField(prompt, "Original Question: ")
		out, _ := json.Marshal([]string{q})
		return string(out)

	case strings.Contains(prompt, "retrieved document chunks are sufficient"):
		q := promptField(prompt, "Original Query: ")
		if strings.Contains(strings.ToLower(q), "iterate") {
			out, _ := json.Marshal(map[string]any{
				"is_sufficient":     false,
				"knowledge_gap":     "needs another pass",
				"follow_up_queries": []string{"more detail about " + q},
			})
			return string(out)
		}
		return `{"is_sufficient": true, "knowledge_gap": "", "follow_up_queries": []}`

	case strings.Contains(prompt, "COLLECTION_INFO"):
		return "[]"

	case strings.Contains(prompt, "determine which chunks are helpful"):
		n := strings.Count(prompt, "</chunk_")
		nums := make([]int, n)
		for i := range nums {
			nums[i] = i + 1
		}
		out, _ := json.Marshal(nums)
		return string(out)

	case strings.Contains(prompt, "summarize a specific and detailed answer"):
		if strings.Count(prompt, "</chunk_") == 0 {
			return "The chunks do not contain the information needed."
		}
		return "The ingested documents answer this directly [1]."

	default:
		return "Hello from mock!"
	}
}

// promptField extracts the remainder of the first line starting with prefix.
func promptField(prompt, prefix string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func handleMockEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": bagOfWordsVector(text, 64),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  req.Model,
		"data":   data,
	})
}

func bagOfWordsVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(tok, ".,;:!?\"'()[]")))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}
