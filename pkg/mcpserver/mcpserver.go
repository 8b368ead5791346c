package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

// serverVersion is reported in the MCP handshake.
const serverVersion = "0.1.0"

// QueryEngine answers questions against the indexed corpus. Implemented
// by engine.Engine.
type QueryEngine interface {
	Query(ctx context.Context, q api.Query) (*api.Answer, error)
	NaiveQuery(ctx context.Context, q api.Query) (*api.Answer, error)
}

// DeepQueryInput is the input for the deep_query tool.
type DeepQueryInput struct {
	Question      string `json:"question" jsonschema_description:"The question to answer"`
	Collection    string `json:"collection,omitempty" jsonschema_description:"Collection to search; searches all collections when empty"`
	MaxIterations int    `json:"max_iterations,omitempty" jsonschema_description:"Cap on retrieval iterations; server default when omitted"`
}

// NaiveQueryInput is the input for the naive_query tool.
type NaiveQueryInput struct {
	Question   string `json:"question" jsonschema_description:"The question to answer"`
	Collection string `json:"collection,omitempty" jsonschema_description:"Collection to search; searches all collections when empty"`
}

// Server exposes the query engine as MCP tools.
type Server struct {
	mcp *mcp.Server
}

// New builds the MCP server with the deep_query, naive_query, and
// list_collections tools registered.
func New(eng QueryEngine, cat catalog.Catalog) *Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "loupe", Version: serverVersion},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deep_query",
		Description: "Answer a question using iterative retrieval over the indexed corpus. Returns a cited answer.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input DeepQueryInput) (*mcp.CallToolResult, struct{}, error) {
		answer, err := eng.Query(ctx, api.Query{
			Question:      input.Question,
			Collection:    input.Collection,
			MaxIterations: input.MaxIterations,
		})
		if err != nil {
			return errorResult(err), struct{}{}, nil
		}
		return textResult(renderAnswer(answer)), struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "naive_query",
		Description: "Answer a question with a single retrieval pass, no reflection. Faster and cheaper than deep_query.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input NaiveQueryInput) (*mcp.CallToolResult, struct{}, error) {
		answer, err := eng.NaiveQuery(ctx, api.Query{
			Question:   input.Question,
			Collection: input.Collection,
		})
		if err != nil {
			return errorResult(err), struct{}{}, nil
		}
		return textResult(renderAnswer(answer)), struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List the document collections available for querying.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		cols, err := cat.List(ctx)
		if err != nil {
			return errorResult(err), struct{}{}, nil
		}
		return textResult(renderCollections(cols)), struct{}{}, nil
	})

	return &Server{mcp: server}
}

// Handler returns the streamable HTTP handler for mounting under the
// configured MCP path.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// Run serves MCP over the given transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// renderAnswer flattens an answer into tool output: the synthesized text
// followed by the numbered sources its bracket references point at.
func renderAnswer(a *api.Answer) string {
	var b strings.Builder
	b.WriteString(a.Text)
	if len(a.Citations) > 0 {
		b.WriteString("\n\nSources:\n")
		for i, c := range a.Citations {
			fmt.Fprintf(&b, "[%d] %s", i+1, c.Source.Collection)
			if c.Source.Document != "" {
				b.WriteString("/" + c.Source.Document)
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCollections(cols []catalog.Collection) string {
	if len(cols) == 0 {
		return "no collections"
	}
	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c.Name)
		if c.Description != "" {
			b.WriteString(": " + c.Description)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
