package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxPageBytes caps how much of a page body is read and parsed.
const maxPageBytes = 8 << 20

// skippedElements are tags whose text content is never page prose.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
	"nav":      true,
	"footer":   true,
	"iframe":   true,
}

// blockElements get a trailing blank line so paragraph structure survives
// into the splitter.
var blockElements = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "li": true, "pre": true, "blockquote": true,
	"article": true, "section": true, "div": true, "table": true,
}

// WebLoader fetches pages over HTTP and extracts their visible text.
type WebLoader struct {
	client *http.Client
}

// NewWebLoader creates a loader with the given per-request timeout.
func NewWebLoader(timeout time.Duration) *WebLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebLoader{client: &http.Client{Timeout: timeout}}
}

// Load fetches one URL and returns its visible text as a document.
func (w *WebLoader) Load(ctx context.Context, url string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("ingest: building request for %s: %w", url, err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Document{}, ctx.Err()
		}
		return Document{}, fmt.Errorf("ingest: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("ingest: fetching %s: status %d", url, resp.StatusCode)
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Document{}, fmt.Errorf("ingest: parsing %s: %w", url, err)
	}

	text := extractText(root)
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("ingest: no text extracted from %s", url)
	}
	return Document{Content: text, Reference: url}, nil
}

// extractText walks the parse tree collecting visible text, one text node
// per line, with blank lines after block elements.
func extractText(root *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(root)
	return b.String()
}
