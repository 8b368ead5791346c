package engine

import (
	"context"
	"fmt"

	"github.com/loupelabs/loupe/pkg/api"
)

// decompose asks the model to break the question into retrieval
// sub-queries. Unparseable output returns an error wrapping
// api.ErrDecompositionParse; the caller falls back to the raw question.
func (e *Engine) decompose(ctx context.Context, question string) ([]string, api.Usage, error) {
	req := e.completionRequest(decomposePrompt(question, e.cfg.maxSubQueries()), false)
	resp, err := e.complete(ctx, req)
	if err != nil {
		return nil, api.Usage{}, fmt.Errorf("decomposition: %w", err)
	}

	subs, err := parseStringArray(resp.Content)
	if err != nil {
		return nil, resp.Usage, fmt.Errorf("%v: %w", err, api.ErrDecompositionParse)
	}
	if len(subs) > e.cfg.maxSubQueries() {
		subs = subs[:e.cfg.maxSubQueries()]
	}
	return subs, resp.Usage, nil
}

// registerSubQueries normalizes candidates, drops blanks and any that
// duplicate a previously issued sub-query, records the survivors in seen,
// and tags them with the pass that produced them.
func registerSubQueries(candidates []string, seen map[string]bool, iteration int) []api.SubQuery {
	var out []api.SubQuery
	for _, text := range candidates {
		norm := api.NormalizeSubQuery(text)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, api.SubQuery{Text: text, Normalized: norm, Iteration: iteration})
	}
	return out
}

func subQueryTexts(batch []api.SubQuery) []string {
	out := make([]string, len(batch))
	for i, sq := range batch {
		out[i] = sq.Text
	}
	return out
}
