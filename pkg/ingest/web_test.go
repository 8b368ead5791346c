package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<html>
<head><title>Ignored</title><script>var x = 1;</script><style>.c { color: red; }</style></head>
<body>
<nav>Home | About</nav>
<h1>Heading</h1>
<p>First paragraph.</p>
<p>Second paragraph.</p>
<footer>copyright</footer>
</body>
</html>`

func TestWebLoaderExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	doc, err := NewWebLoader(time.Second).Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.Reference != srv.URL {
		t.Errorf("Reference = %q, want %q", doc.Reference, srv.URL)
	}
	for _, want := range []string{"Heading", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(doc.Content, want) {
			t.Errorf("content missing %q", want)
		}
	}
	for _, banned := range []string{"var x", "color: red", "Home | About", "copyright", "Ignored"} {
		if strings.Contains(doc.Content, banned) {
			t.Errorf("content carries non-prose text %q", banned)
		}
	}
}

func TestWebLoaderSeparatesParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<body><p>one</p><p>two</p></body>`))
	}))
	defer srv.Close()

	doc, err := NewWebLoader(time.Second).Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(doc.Content, "one\n\n") {
		t.Errorf("content = %q, want a blank line after each paragraph", doc.Content)
	}
}

func TestWebLoaderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewWebLoader(time.Second).Load(context.Background(), srv.URL); err == nil {
		t.Error("Load succeeded on a 404, want error")
	}
}

func TestWebLoaderNoVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><script>only code</script></body></html>`))
	}))
	defer srv.Close()

	_, err := NewWebLoader(time.Second).Load(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "no text") {
		t.Errorf("Load error = %v, want no-text error", err)
	}
}
