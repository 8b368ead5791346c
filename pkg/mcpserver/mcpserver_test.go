package mcpserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
	"github.com/loupelabs/loupe/pkg/catalog/memory"
)

type stubEngine struct {
	answer *api.Answer
	err    error

	got   api.Query
	naive bool
}

func (e *stubEngine) Query(_ context.Context, q api.Query) (*api.Answer, error) {
	e.got = q
	return e.answer, e.err
}

func (e *stubEngine) NaiveQuery(_ context.Context, q api.Query) (*api.Answer, error) {
	e.got = q
	e.naive = true
	return e.answer, e.err
}

// connect wires the server to a client session over in-memory transports.
func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var out strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			out.WriteString(tc.Text)
		}
	}
	return out.String()
}

func TestToolDiscovery(t *testing.T) {
	session := connect(t, New(&stubEngine{}, memory.New()))

	names := map[string]bool{}
	for tool, err := range session.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("listing tools: %v", err)
		}
		names[tool.Name] = true
	}

	for _, want := range []string{"deep_query", "naive_query", "list_collections"} {
		if !names[want] {
			t.Errorf("tool %q not discovered, got %v", want, names)
		}
	}
}

func TestDeepQueryTool(t *testing.T) {
	eng := &stubEngine{answer: &api.Answer{
		Text: "Embeddings map text into vectors [1].",
		Citations: []api.Citation{
			{ChunkID: "c1", Source: api.SourceRef{Collection: "docs", Document: "intro.md"}},
		},
		Termination: api.TerminationSufficient,
	}}
	session := connect(t, New(eng, memory.New()))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "deep_query",
		Arguments: map[string]any{
			"question":       "what are embeddings?",
			"collection":     "docs",
			"max_iterations": 2,
		},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Embeddings map text into vectors") {
		t.Errorf("output missing answer text: %q", text)
	}
	if !strings.Contains(text, "[1] docs/intro.md") {
		t.Errorf("output missing source line: %q", text)
	}

	if eng.got.Question != "what are embeddings?" {
		t.Errorf("question = %q", eng.got.Question)
	}
	if eng.got.Collection != "docs" || eng.got.MaxIterations != 2 {
		t.Errorf("query knobs = %+v", eng.got)
	}
	if eng.naive {
		t.Error("deep_query used the naive path")
	}
}

func TestDeepQueryTool_EngineError(t *testing.T) {
	eng := &stubEngine{err: errors.New("decompose: provider unavailable")}
	session := connect(t, New(eng, memory.New()))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "deep_query",
		Arguments: map[string]any{"question": "q"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError result")
	}
	if text := resultText(t, result); !strings.Contains(text, "provider unavailable") {
		t.Errorf("error text = %q", text)
	}
}

func TestNaiveQueryTool(t *testing.T) {
	eng := &stubEngine{answer: &api.Answer{Text: "short answer", Termination: api.TerminationNaive}}
	session := connect(t, New(eng, memory.New()))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "naive_query",
		Arguments: map[string]any{"question": "q"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", resultText(t, result))
	}
	if !eng.naive {
		t.Error("naive_query did not use the naive path")
	}
}

func TestListCollectionsTool(t *testing.T) {
	cat := memory.New()
	ctx := context.Background()
	cat.Upsert(ctx, catalog.Collection{Name: "docs", Description: "product docs"})
	cat.Upsert(ctx, catalog.Collection{Name: "papers"})

	session := connect(t, New(&stubEngine{}, cat))

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_collections",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "docs: product docs") {
		t.Errorf("output missing described collection: %q", text)
	}
	if !strings.Contains(text, "papers") {
		t.Errorf("output missing collection: %q", text)
	}
}

func TestListCollectionsTool_Empty(t *testing.T) {
	session := connect(t, New(&stubEngine{}, memory.New()))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_collections",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if text := resultText(t, result); text != "no collections" {
		t.Errorf("output = %q, want %q", text, "no collections")
	}
}
