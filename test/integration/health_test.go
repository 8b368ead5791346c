package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health map[string]string
	decodeJSON(t, resp, &health)
	if health["status"] != "ok" {
		t.Errorf("status = %q, want %q", health["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}

	var ready map[string]string
	decodeJSON(t, resp, &ready)
	if ready["status"] != "ready" {
		t.Errorf("status = %q, want %q", ready["status"], "ready")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	// The health probes above have already passed through the metrics
	// middleware, so the request counter has samples.
	resp := getURL(t, testEnv.BaseURL()+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	if !strings.Contains(body, "loupe_requests_total") {
		t.Error("metrics exposition missing loupe_requests_total")
	}
	if !strings.Contains(body, "loupe_inflight_requests") {
		t.Error("metrics exposition missing loupe_inflight_requests")
	}
}
