package engine

import (
	"context"
	"log/slog"

	"github.com/loupelabs/loupe/pkg/api"
)

// rerankEvidence filters retrieved chunks down to those the model judges
// helpful for the current batch of queries. One completion covers the
// whole batch. Any failure fails open: better to synthesize from noisy
// evidence than to drop a pass's retrievals.
func (e *Engine) rerankEvidence(ctx context.Context, queries []string, evidence []api.Evidence) ([]api.Evidence, api.Usage) {
	if len(evidence) == 0 {
		return evidence, api.Usage{}
	}

	prompt := rerankPrompt(queries, evidenceTexts(evidence))
	resp, err := e.complete(ctx, e.completionRequest(prompt, false))
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("rerank failed, keeping all chunks", "error", err)
		}
		return evidence, api.Usage{}
	}

	indices, err := parseIndexArray(resp.Content)
	if err != nil {
		slog.Warn("rerank output unparseable, keeping all chunks", "error", err)
		return evidence, resp.Usage
	}

	keep := make(map[int]bool, len(indices))
	for _, n := range indices {
		if n >= 1 && n <= len(evidence) {
			keep[n-1] = true
		}
	}
	var out []api.Evidence
	for i, ev := range evidence {
		if keep[i] {
			out = append(out, ev)
		}
	}
	return out, resp.Usage
}
