package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/provider"
)

func TestComplete(t *testing.T) {
	chatResp := chatCompletionResponse{
		ID:    "chatcmpl-test-123",
		Model: "test-model",
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatMessage{
					Role:    "assistant",
					Content: "Paris is the capital of France.",
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     12,
			CompletionTokens: 9,
			TotalTokens:      21,
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want \"Bearer sk-test\"", got)
		}

		var chatReq chatRequest
		if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if chatReq.Model != "test-model" {
			t.Errorf("model = %q, want \"test-model\"", chatReq.Model)
		}
		if len(chatReq.Messages) != 2 {
			t.Errorf("messages length = %d, want 2", len(chatReq.Messages))
		}

		json.NewEncoder(w).Encode(chatResp)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer client.Close()

	resp, err := client.Complete(context.Background(), &provider.Request{
		Model: "test-model",
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "You answer concisely."},
			{Role: provider.RoleUser, Content: "What is the capital of France?"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if resp.Content != "Paris is the capital of France." {
		t.Errorf("Content = %q, want the backend message", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want \"stop\"", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 21 {
		t.Errorf("Usage.TotalTokens = %d, want 21", resp.Usage.TotalTokens)
	}
}

func TestCompleteJSONMode(t *testing.T) {
	tests := []struct {
		name       string
		jsonMode   bool
		wantFormat bool
	}{
		{"json mode supported", true, true},
		{"json mode unsupported", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotFormat *responseFormat
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var chatReq chatRequest
				if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				gotFormat = chatReq.ResponseFormat
				json.NewEncoder(w).Encode(chatCompletionResponse{
					Choices: []chatChoice{{Message: chatMessage{Content: "{}"}}},
				})
			}))
			defer srv.Close()

			client, err := New(Config{BaseURL: srv.URL, JSONMode: tt.jsonMode})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			defer client.Close()

			_, err = client.Complete(context.Background(), &provider.Request{
				Model:        "m",
				Messages:     []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
				ResponseJSON: true,
			})
			if err != nil {
				t.Fatalf("Complete() error: %v", err)
			}

			if tt.wantFormat {
				if gotFormat == nil || gotFormat.Type != "json_object" {
					t.Errorf("response_format = %+v, want json_object", gotFormat)
				}
			} else if gotFormat != nil {
				t.Errorf("response_format = %+v, want omitted", gotFormat)
			}
		})
	}
}

func TestCompleteErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
		wantFatal     bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true, false},
		{"server error", http.StatusInternalServerError, ``, true, false},
		{"bad gateway", http.StatusBadGateway, ``, true, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad prompt"}}`, false, true},
		{"unauthorized", http.StatusUnauthorized, ``, false, true},
		{"not found", http.StatusNotFound, ``, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := New(Config{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			defer client.Close()

			_, err = client.Complete(context.Background(), &provider.Request{
				Model:    "m",
				Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
			})
			if err == nil {
				t.Fatal("Complete() = nil error, want classified error")
			}
			if got := api.IsTransient(err); got != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", got, tt.wantTransient, err)
			}
			if got := api.IsFatal(err); got != tt.wantFatal {
				t.Errorf("IsFatal = %v, want %v (err: %v)", got, tt.wantFatal, err)
			}
		})
	}
}

func TestCompleteErrorMessageExtracted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer client.Close()

	_, err = client.Complete(context.Background(), &provider.Request{
		Model:    "m",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() = nil error, want error")
	}
	if !contains(err.Error(), "context length exceeded") {
		t.Errorf("error = %q, want backend message included", err.Error())
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatCompletionResponse{Model: "m"})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer client.Close()

	_, err = client.Complete(context.Background(), &provider.Request{
		Model:    "m",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	if !api.IsFatal(err) {
		t.Errorf("Complete() with empty choices = %v, want fatal error", err)
	}
}

func TestCompleteContextCancelled(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Complete(ctx, &provider.Request{
		Model:    "m",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Complete() = %v, want context.DeadlineExceeded", err)
	}
	if api.IsTransient(err) {
		t.Error("cancelled request should not be classified transient")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty BaseURL = nil error, want error")
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer client.Close()

	if _, err := client.Complete(context.Background(), &provider.Request{
		Model:    "m",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	}); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("request path = %q, want \"/v1/chat/completions\"", gotPath)
	}
}

// contains checks if s contains substr.
func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
