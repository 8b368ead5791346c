package engine

import (
	"context"
	"log/slog"

	"github.com/loupelabs/loupe/pkg/api"
)

// reflect judges whether the gathered evidence answers the question and
// proposes follow-up queries when it does not. Failures other than context
// cancellation resolve to "sufficient": the loop must terminate rather
// than spin on a broken reflection step.
func (e *Engine) reflect(ctx context.Context, question string, subQueries []string, evidence []api.Evidence) (reflectionResult, api.Usage, error) {
	prompt := reflectPrompt(question, subQueries, evidenceTexts(evidence), e.cfg.maxSubQueries())
	resp, err := e.complete(ctx, e.completionRequest(prompt, true))
	if err != nil {
		if ctx.Err() != nil {
			return reflectionResult{}, api.Usage{}, ctx.Err()
		}
		slog.Warn("reflection failed, terminating the loop", "error", err)
		return reflectionResult{IsSufficient: true}, api.Usage{}, nil
	}

	refl, err := parseReflection(resp.Content)
	if err != nil {
		slog.Warn("reflection output unparseable, terminating the loop", "error", err)
		return reflectionResult{IsSufficient: true}, resp.Usage, nil
	}
	if len(refl.FollowUpQueries) > e.cfg.maxSubQueries() {
		refl.FollowUpQueries = refl.FollowUpQueries[:e.cfg.maxSubQueries()]
	}
	return refl, resp.Usage, nil
}

func evidenceTexts(evidence []api.Evidence) []string {
	out := make([]string, len(evidence))
	for i, ev := range evidence {
		out[i] = ev.Text
	}
	return out
}
