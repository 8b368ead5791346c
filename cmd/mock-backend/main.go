// Command mock-backend runs a deterministic OpenAI-compatible backend for
// developing loupe without a real model server. It answers the engine's
// retrieval prompts with parseable output and serves bag-of-words
// embeddings, so ingestion and the full query loop work end to end.
//
// Include the word "iterate" in a question to make reflection report a
// knowledge gap, which drives the engine through an extra retrieval pass.
//
// Configuration:
//
//	MOCK_PORT      - Listen port (default: 9090)
//	MOCK_EMBED_DIM - Embedding dimensionality (default: 64)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	embedDim := 64
	if v := os.Getenv("MOCK_EMBED_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			embedDim = n
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", embeddingsHandler(embedDim))
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "embed_dim", embedDim)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Chat completions ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	prompt := lastUserMessage(&req)
	reply := classifyAndReply(prompt)

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: reply},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(reply) / 4,
			TotalTokens:      len(prompt)/4 + len(reply)/4,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// classifyAndReply matches the prompt against the engine's retrieval
// prompts and produces output its parsers accept.
func classifyAndReply(prompt string) string {
	switch {
	case strings.Contains(prompt, "break down the original question"):
		return decomposeReply(prompt)
	case strings.Contains(prompt, "retrieved document chunks are sufficient"):
		return reflectReply(prompt)
	case strings.Contains(prompt, "COLLECTION_INFO"):
		// An empty selection makes the engine search every collection.
		return "[]"
	case strings.Contains(prompt, "determine which chunks are helpful"):
		return rerankReply(prompt)
	case strings.Contains(prompt, "summarize a specific and detailed answer"):
		return synthesizeReply(prompt)
	default:
		return "Hello from the mock backend."
	}
}

func decomposeReply(prompt string) string {
	q := promptField(prompt, "Original Question: ")
	if q == "" {
		q = "what is this about"
	}
	out, _ := json.Marshal([]string{q})
	return string(out)
}

func reflectReply(prompt string) string {
	q := promptField(prompt, "Original Query: ")
	if strings.Contains(strings.ToLower(q), "iterate") {
		out, _ := json.Marshal(map[string]any{
			"is_sufficient":     false,
			"knowledge_gap":     "the mock wants one more pass",
			"follow_up_queries": []string{"more detail about " + q},
		})
		return string(out)
	}
	out, _ := json.Marshal(map[string]any{
		"is_sufficient":     true,
		"knowledge_gap":     "",
		"follow_up_queries": []string{},
	})
	return string(out)
}

func rerankReply(prompt string) string {
	n := strings.Count(prompt, "</chunk_")
	nums := make([]int, n)
	for i := range nums {
		nums[i] = i + 1
	}
	out, _ := json.Marshal(nums)
	return string(out)
}

func synthesizeReply(prompt string) string {
	n := strings.Count(prompt, "</chunk_")
	if n == 0 {
		return "The retrieved chunks do not contain the information needed to answer this question."
	}
	if n == 1 {
		return "Mock synthesis: the answer follows from the retrieved evidence [1]."
	}
	return fmt.Sprintf("Mock synthesis over %d chunks: the main finding is supported by [1], with additional context in [2].", n)
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

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

// --- Embeddings ---

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func embeddingsHandler(dim int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": bagOfWordsVector(text, dim),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}
}

// bagOfWordsVector hashes each token into a dimension and normalizes, so
// texts sharing words get similar vectors and retrieval behaves sanely.
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

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "loupe-mock"},
			{"id": "mock-embedding", "object": "model", "owned_by": "loupe-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
