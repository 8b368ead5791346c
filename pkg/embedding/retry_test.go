package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/loupelabs/loupe/pkg/api"
)

func TestWithRetryTransientThenSuccess(t *testing.T) {
	attempts := 0
	mock := &mockEmbedder{
		embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, fmt.Errorf("embedding HTTP 503: %w", api.ErrProviderTransient)
			}
			return identityEmbed(ctx, texts)
		},
	}

	emb := WithRetry(mock, 3)
	vectors, err := emb.Embed(context.Background(), []string{"alpha"})
	if err != nil {
		t.Fatalf("Embed() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(vectors) != 1 {
		t.Errorf("len(vectors) = %d, want 1", len(vectors))
	}
}

func TestWithRetryFatalNotRetried(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ []string) ([][]float32, error) {
			return nil, fmt.Errorf("embedding HTTP 401: %w", api.ErrProviderFatal)
		},
	}

	emb := WithRetry(mock, 3)
	_, err := emb.Embed(context.Background(), []string{"alpha"})
	if !api.IsFatal(err) {
		t.Fatalf("Embed() error = %v, want fatal", err)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal errors must not be retried)", mock.calls)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	mock := &mockEmbedder{
		embedFn: func(_ context.Context, _ []string) ([][]float32, error) {
			return nil, fmt.Errorf("embedding connection error: %w", api.ErrProviderTransient)
		},
	}

	emb := WithRetry(mock, 2)
	_, err := emb.Embed(context.Background(), []string{"alpha"})
	if !api.IsTransient(err) {
		t.Fatalf("Embed() error = %v, want transient", err)
	}
	if mock.calls != 2 {
		t.Errorf("calls = %d, want 2", mock.calls)
	}
}

func TestWithRetryDelegatesModel(t *testing.T) {
	emb := WithRetry(&mockEmbedder{embedFn: identityEmbed}, 3)
	if got := emb.Model(); got != "mock-model" {
		t.Errorf("Model() = %q, want %q", got, "mock-model")
	}
	if got := emb.Dimensions(); got != 2 {
		t.Errorf("Dimensions() = %d, want 2", got)
	}
}
