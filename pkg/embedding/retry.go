package embedding

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loupelabs/loupe/pkg/api"
)

// retryEmbedder wraps an Embedder and retries transient failures.
type retryEmbedder struct {
	inner       Embedder
	maxAttempts int
}

// WithRetry wraps e so that Embed retries transient failures with jittered
// exponential backoff. maxAttempts counts the initial call plus retries;
// values below 1 are treated as 1. Fatal errors and context cancellation
// are returned immediately.
func WithRetry(e Embedder, maxAttempts int) Embedder {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryEmbedder{inner: e, maxAttempts: maxAttempts}
}

func (r *retryEmbedder) Dimensions() int { return r.inner.Dimensions() }
func (r *retryEmbedder) Model() string   { return r.inner.Model() }

func (r *retryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	operation := func() ([][]float32, error) {
		vectors, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if api.IsTransient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.maxAttempts-1)), ctx))
}
