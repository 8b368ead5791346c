package vectordb

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/debug"
)

// retryStore wraps a Store and retries transient failures.
type retryStore struct {
	inner       Store
	maxAttempts int
}

// WithRetry wraps s so that its operations retry transient failures with
// jittered exponential backoff. maxAttempts counts the initial call plus
// retries; values below 1 are treated as 1. Errors that do not wrap
// api.ErrProviderTransient stop the retry loop immediately, so context
// cancellation and collection-not-found propagate unmodified.
func WithRetry(s Store, maxAttempts int) Store {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryStore{inner: s, maxAttempts: maxAttempts}
}

func (r *retryStore) Name() string { return r.inner.Name() }
func (r *retryStore) Close() error { return r.inner.Close() }

func (r *retryStore) EnsureCollection(ctx context.Context, name string, dims int) error {
	return r.retry(ctx, func() error {
		return r.inner.EnsureCollection(ctx, name, dims)
	})
}

func (r *retryStore) Upsert(ctx context.Context, collection string, points []Point) error {
	return r.retry(ctx, func() error {
		return r.inner.Upsert(ctx, collection, points)
	})
}

func (r *retryStore) Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float64) ([]Match, error) {
	operation := func() ([]Match, error) {
		matches, err := r.inner.Search(ctx, collection, vector, topK, scoreThreshold)
		if err != nil && !api.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return matches, err
	}
	matches, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(r.maxAttempts-1)), ctx))
	if err == nil {
		debug.Log("vectordb", "search",
			"store", r.inner.Name(),
			"collection", collection,
			"top_k", topK,
			"matches", len(matches),
		)
	}
	return matches, err
}

func (r *retryStore) DeleteCollection(ctx context.Context, name string) error {
	return r.retry(ctx, func() error {
		return r.inner.DeleteCollection(ctx, name)
	})
}

func (r *retryStore) retry(ctx context.Context, op func() error) error {
	operation := func() error {
		err := op()
		if err != nil && !api.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(r.maxAttempts-1)), ctx))
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}
