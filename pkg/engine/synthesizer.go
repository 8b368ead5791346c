package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/loupelabs/loupe/pkg/api"
)

// insufficientAnswer is returned when a query finishes with an empty
// evidence set. It is a terminal answer, not an error.
const insufficientAnswer = "I could not find enough information in the indexed collections to answer this question."

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// synthesize produces the final answer from the capped evidence and maps
// the completion's bracketed markers back to chunk ids.
func (e *Engine) synthesize(ctx context.Context, question string, subQueries []string, evidence []api.Evidence) (string, []api.Citation, api.Usage, error) {
	prompt := synthesizePrompt(question, subQueries, evidenceTexts(evidence))
	resp, err := e.complete(ctx, e.completionRequest(prompt, false))
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, api.Usage{}, ctx.Err()
		}
		return "", nil, api.Usage{}, fmt.Errorf("synthesis: %w", err)
	}

	text := strings.TrimSpace(stripThink(resp.Content))
	return text, extractCitations(text, evidence), resp.Usage, nil
}

// extractCitations returns the cited chunks in first-mention order.
// Markers are 1-based indices into evidence; out-of-range and repeated
// markers are ignored. A completion without any markers cites every
// supplied chunk in evidence order.
func extractCitations(text string, evidence []api.Evidence) []api.Citation {
	var out []api.Citation
	cited := make(map[int]bool)
	for _, m := range citationMarkerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(evidence) || cited[n] {
			continue
		}
		cited[n] = true
		out = append(out, api.Citation{ChunkID: evidence[n-1].ChunkID, Source: evidence[n-1].Source})
	}
	if len(out) == 0 {
		for _, ev := range evidence {
			out = append(out, api.Citation{ChunkID: ev.ChunkID, Source: ev.Source})
		}
	}
	return out
}
