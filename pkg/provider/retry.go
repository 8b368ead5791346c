package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loupelabs/loupe/pkg/api"
)

// retryProvider wraps a Provider and retries transient completion failures.
type retryProvider struct {
	inner       Provider
	maxAttempts int
}

// WithRetry wraps p so that Complete retries transient failures with
// jittered exponential backoff. maxAttempts counts the initial call plus
// retries; values below 1 are treated as 1. Fatal errors and context
// cancellation are returned immediately.
func WithRetry(p Provider, maxAttempts int) Provider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &retryProvider{inner: p, maxAttempts: maxAttempts}
}

func (r *retryProvider) Name() string               { return r.inner.Name() }
func (r *retryProvider) Capabilities() Capabilities { return r.inner.Capabilities() }
func (r *retryProvider) Close() error               { return r.inner.Close() }

func (r *retryProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	return CompleteWithRetry(ctx, r.inner, req, r.maxAttempts)
}

// CompleteWithRetry invokes p.Complete, retrying transient failures with
// jittered exponential backoff. Errors that do not wrap ErrProviderTransient
// stop the retry loop and are returned as-is, so context cancellation and
// fatal backend errors propagate unmodified.
func CompleteWithRetry(ctx context.Context, p Provider, req *Request, maxAttempts int) (*Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	operation := func() (*Response, error) {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if api.IsTransient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxAttempts-1)), ctx))
}
