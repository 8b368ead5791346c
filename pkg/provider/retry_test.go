package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/loupelabs/loupe/pkg/api"
)

// mockProvider implements Provider with a scripted Complete function.
type mockProvider struct {
	completeFn func(ctx context.Context, req *Request) (*Response, error)
	calls      int
}

func (m *mockProvider) Name() string               { return "mock" }
func (m *mockProvider) Capabilities() Capabilities { return Capabilities{} }
func (m *mockProvider) Close() error               { return nil }

func (m *mockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	m.calls++
	return m.completeFn(ctx, req)
}

func TestCompleteWithRetryTransientThenSuccess(t *testing.T) {
	mock := &mockProvider{}
	mock.completeFn = func(ctx context.Context, req *Request) (*Response, error) {
		if mock.calls < 3 {
			return nil, fmt.Errorf("HTTP 503: %w", api.ErrProviderTransient)
		}
		return &Response{Content: "ok"}, nil
	}

	resp, err := CompleteWithRetry(context.Background(), mock, &Request{Model: "m"}, 3)
	if err != nil {
		t.Fatalf("CompleteWithRetry() error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want \"ok\"", resp.Content)
	}
	if mock.calls != 3 {
		t.Errorf("calls = %d, want 3", mock.calls)
	}
}

func TestCompleteWithRetryFatalNotRetried(t *testing.T) {
	mock := &mockProvider{}
	mock.completeFn = func(ctx context.Context, req *Request) (*Response, error) {
		return nil, fmt.Errorf("HTTP 400: %w", api.ErrProviderFatal)
	}

	_, err := CompleteWithRetry(context.Background(), mock, &Request{Model: "m"}, 3)
	if !api.IsFatal(err) {
		t.Errorf("CompleteWithRetry() = %v, want fatal error", err)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on fatal)", mock.calls)
	}
}

func TestCompleteWithRetryExhausted(t *testing.T) {
	mock := &mockProvider{}
	mock.completeFn = func(ctx context.Context, req *Request) (*Response, error) {
		return nil, fmt.Errorf("HTTP 503: %w", api.ErrProviderTransient)
	}

	_, err := CompleteWithRetry(context.Background(), mock, &Request{Model: "m"}, 2)
	if !api.IsTransient(err) {
		t.Errorf("CompleteWithRetry() = %v, want transient error after exhaustion", err)
	}
	if mock.calls != 2 {
		t.Errorf("calls = %d, want 2", mock.calls)
	}
}

func TestCompleteWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mock := &mockProvider{}
	mock.completeFn = func(ctx context.Context, req *Request) (*Response, error) {
		cancel()
		return nil, fmt.Errorf("HTTP 503: %w", api.ErrProviderTransient)
	}

	_, err := CompleteWithRetry(ctx, mock, &Request{Model: "m"}, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("CompleteWithRetry() = %v, want context.Canceled", err)
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1 (cancellation stops retries)", mock.calls)
	}
}

func TestWithRetryDelegates(t *testing.T) {
	mock := &mockProvider{}
	mock.completeFn = func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Content: "ok"}, nil
	}

	p := WithRetry(mock, 3)
	if p.Name() != "mock" {
		t.Errorf("Name() = %q, want \"mock\"", p.Name())
	}

	resp, err := p.Complete(context.Background(), &Request{Model: "m"})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want \"ok\"", resp.Content)
	}
}
