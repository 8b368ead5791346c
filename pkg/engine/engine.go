package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
	"github.com/loupelabs/loupe/pkg/debug"
	"github.com/loupelabs/loupe/pkg/embedding"
	"github.com/loupelabs/loupe/pkg/observability"
	"github.com/loupelabs/loupe/pkg/provider"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

// Query modes as recorded in metrics.
const (
	modeAdvanced = "advanced"
	modeNaive    = "naive"
)

// Engine orchestrates the reflective retrieval loop between the
// completion provider, the embedder, the vector store, and the catalog.
// It is safe for concurrent use: all per-query state lives on the stack
// of the Query call.
type Engine struct {
	provider provider.Provider
	embedder embedding.Embedder
	store    vectordb.Store
	catalog  catalog.Catalog
	cfg      Config
}

// New creates an Engine. All four collaborators are required.
func New(p provider.Provider, emb embedding.Embedder, store vectordb.Store, cat catalog.Catalog, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("engine: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("engine: vector store must not be nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("engine: catalog must not be nil")
	}
	return &Engine{
		provider: p,
		embedder: emb,
		store:    store,
		catalog:  cat,
		cfg:      cfg,
	}, nil
}

// Query answers a question with the full reflective loop: decompose into
// sub-queries, retrieve evidence for each concurrently, reflect on
// sufficiency, and repeat until the evidence suffices or the iteration
// cap is reached, then synthesize an answer with citations.
func (e *Engine) Query(ctx context.Context, q api.Query) (*api.Answer, error) {
	q, err := e.withDefaults(q)
	if err != nil {
		return nil, err
	}

	answer, err := e.runReflective(ctx, q)
	if err != nil {
		observability.QueriesTotal.WithLabelValues(modeAdvanced, "error").Inc()
		return nil, err
	}
	observability.QueriesTotal.WithLabelValues(modeAdvanced, string(answer.Termination)).Inc()
	observability.QueryIterations.Observe(float64(answer.IterationsUsed))
	return answer, nil
}

// NaiveQuery answers a question with a single retrieval pass using the
// raw question, skipping decomposition, routing, and reflection.
func (e *Engine) NaiveQuery(ctx context.Context, q api.Query) (*api.Answer, error) {
	q, err := e.withDefaults(q)
	if err != nil {
		return nil, err
	}

	answer, err := e.runNaive(ctx, q)
	if err != nil {
		observability.QueriesTotal.WithLabelValues(modeNaive, "error").Inc()
		return nil, err
	}
	observability.QueriesTotal.WithLabelValues(modeNaive, string(answer.Termination)).Inc()
	observability.QueryIterations.Observe(float64(answer.IterationsUsed))
	return answer, nil
}

// withDefaults fills unset knobs from the engine configuration.
func (e *Engine) withDefaults(q api.Query) (api.Query, error) {
	if strings.TrimSpace(q.Question) == "" {
		return q, api.NewInvalidRequestError("question", "question is required")
	}
	if q.ID == "" {
		q.ID = api.NewQueryID()
	}
	if q.MaxIterations <= 0 {
		q.MaxIterations = e.cfg.maxIterations()
	}
	if q.TopK <= 0 {
		q.TopK = e.cfg.topK()
	}
	return q, nil
}

func (e *Engine) runReflective(ctx context.Context, q api.Query) (*api.Answer, error) {
	started := time.Now()
	slog.Info("query started",
		"query_id", q.ID,
		"max_iterations", q.MaxIterations,
		"top_k", q.TopK,
		"collection", q.Collection,
	)

	collections, preUsage, err := e.resolveCollections(ctx, q.Question, q.Collection, e.cfg.Routing)
	if err != nil {
		return nil, err
	}

	evidence := newEvidenceSet()
	seen := make(map[string]bool)
	var allSubQueries []string
	var iterations []api.IterationRecord
	var lastErr error
	anyRetrievalOK := false

	// The first batch comes from decomposition; a failed or empty
	// decomposition falls back to the raw question.
	batch, pending, err := e.firstBatch(ctx, q, seen)
	if err != nil {
		return nil, err
	}

	termination := api.TerminationBoundReached
	for iter := 1; ; iter++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		record := api.IterationRecord{
			Iteration:  iter,
			SubQueries: subQueryTexts(batch),
			Usage:      pending,
		}
		pending = api.Usage{}
		allSubQueries = append(allSubQueries, record.SubQueries...)

		results, err := e.retrieveBatch(ctx, batch, collections, q.TopK, false)
		if err != nil {
			return nil, err
		}

		var retrieved []api.Evidence
		for _, res := range results {
			rr := api.RetrievalRecord{SubQuery: res.SubQuery.Text, Matches: len(res.Matches)}
			if res.Err != nil {
				rr.Error = res.Err.Error()
				lastErr = res.Err
				slog.Warn("sub-query retrieval failed",
					"query_id", q.ID,
					"iteration", iter,
					"sub_query", res.SubQuery.Text,
					"error", res.Err,
				)
			} else {
				anyRetrievalOK = true
				retrieved = append(retrieved, res.Matches...)
			}
			record.Retrievals = append(record.Retrievals, rr)
		}

		if e.cfg.Rerank && len(retrieved) > 0 {
			kept, usage := e.rerankEvidence(ctx, record.SubQueries, retrieved)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			record.Usage.Add(usage)
			retrieved = kept
		}

		for _, ev := range retrieved {
			if evidence.Add(ev) {
				record.NewEvidence++
			}
		}
		slog.Debug("iteration retrieved",
			"query_id", q.ID,
			"iteration", iter,
			"new_evidence", record.NewEvidence,
			"evidence_total", evidence.Len(),
		)

		if iter >= q.MaxIterations {
			iterations = append(iterations, record)
			termination = api.TerminationBoundReached
			break
		}

		refl, usage, err := e.reflect(ctx, q.Question, allSubQueries, evidence.Top(e.cfg.maxEvidence()))
		record.Usage.Add(usage)
		if err != nil {
			return nil, err
		}
		record.Reflection = &api.ReflectionRecord{
			Sufficient:   refl.IsSufficient,
			KnowledgeGap: refl.KnowledgeGap,
			FollowUps:    refl.FollowUpQueries,
		}
		iterations = append(iterations, record)

		if refl.IsSufficient {
			termination = api.TerminationSufficient
			break
		}
		next := registerSubQueries(refl.FollowUpQueries, seen, iter+1)
		if len(next) == 0 {
			termination = api.TerminationNoNewSubQueries
			break
		}
		batch = next
	}

	if evidence.Len() == 0 && !anyRetrievalOK && lastErr != nil {
		return nil, fmt.Errorf("retrieval failed: %w", lastErr)
	}
	return e.finish(ctx, q, started, iterations, preUsage, evidence, termination, allSubQueries)
}

func (e *Engine) runNaive(ctx context.Context, q api.Query) (*api.Answer, error) {
	started := time.Now()
	slog.Info("naive query started", "query_id", q.ID, "top_k", q.TopK, "collection", q.Collection)

	collections, _, err := e.resolveCollections(ctx, q.Question, q.Collection, false)
	if err != nil {
		return nil, err
	}

	batch := registerSubQueries([]string{q.Question}, make(map[string]bool), 1)
	results, err := e.retrieveBatch(ctx, batch, collections, q.TopK, true)
	if err != nil {
		return nil, err
	}

	evidence := newEvidenceSet()
	record := api.IterationRecord{Iteration: 1, SubQueries: subQueryTexts(batch)}
	for _, res := range results {
		rr := api.RetrievalRecord{SubQuery: res.SubQuery.Text, Matches: len(res.Matches)}
		if res.Err != nil {
			rr.Error = res.Err.Error()
			record.Retrievals = append(record.Retrievals, rr)
			return nil, fmt.Errorf("retrieval failed: %w", res.Err)
		}
		record.Retrievals = append(record.Retrievals, rr)
		for _, ev := range res.Matches {
			if evidence.Add(ev) {
				record.NewEvidence++
			}
		}
	}

	return e.finish(ctx, q, started, []api.IterationRecord{record}, api.Usage{}, evidence, api.TerminationNaive, subQueryTexts(batch))
}

// firstBatch decomposes the question into the first pass's sub-queries.
// Decomposition failures and empty decompositions fall back to the raw
// question; only context cancellation aborts the query.
func (e *Engine) firstBatch(ctx context.Context, q api.Query, seen map[string]bool) ([]api.SubQuery, api.Usage, error) {
	subs, usage, err := e.decompose(ctx, q.Question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, usage, ctx.Err()
		}
		slog.Warn("decomposition failed, using the raw question", "query_id", q.ID, "error", err)
		subs = nil
	}
	batch := registerSubQueries(subs, seen, 1)
	if len(batch) == 0 {
		batch = registerSubQueries([]string{q.Question}, seen, 1)
	}
	return batch, usage, nil
}

// finish synthesizes the answer from the highest-scoring evidence and
// assembles the terminal Answer. An empty evidence set yields the fixed
// insufficient-information answer instead of a completion call.
func (e *Engine) finish(ctx context.Context, q api.Query, started time.Time, iterations []api.IterationRecord, preUsage api.Usage, evidence *evidenceSet, termination api.TerminationReason, allSubQueries []string) (*api.Answer, error) {
	top := evidence.Top(e.cfg.maxEvidence())

	var text string
	var citations []api.Citation
	var synthUsage api.Usage
	if len(top) == 0 {
		text = insufficientAnswer
		termination = api.TerminationNoEvidence
	} else {
		var err error
		text, citations, synthUsage, err = e.synthesize(ctx, q.Question, allSubQueries, top)
		if err != nil {
			return nil, err
		}
	}
	if citations == nil {
		citations = []api.Citation{}
	}

	total := preUsage
	for i := range iterations {
		total.Add(iterations[i].Usage)
	}
	total.Add(synthUsage)

	answer := &api.Answer{
		ID:             q.ID,
		Question:       q.Question,
		Text:           text,
		Citations:      citations,
		Iterations:     iterations,
		IterationsUsed: len(iterations),
		Termination:    termination,
		Usage:          total,
		DurationMS:     time.Since(started).Milliseconds(),
	}
	slog.Info("query finished",
		"query_id", q.ID,
		"termination", string(termination),
		"iterations", answer.IterationsUsed,
		"evidence", evidence.Len(),
		"citations", len(citations),
		"duration_ms", answer.DurationMS,
	)
	return answer, nil
}

// completionRequest assembles a provider request with the engine's model
// and sampling settings.
func (e *Engine) completionRequest(prompt string, wantJSON bool) *provider.Request {
	temperature := e.cfg.Temperature
	req := &provider.Request{
		Model:        e.cfg.Model,
		Messages:     []provider.Message{{Role: provider.RoleUser, Content: prompt}},
		Temperature:  &temperature,
		ResponseJSON: wantJSON,
	}
	if e.cfg.MaxTokens > 0 {
		maxTokens := e.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}
	return req
}

// complete invokes the provider and records request metrics.
func (e *Engine) complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if debug.TraceIsEnabled("prompts") {
		for _, m := range req.Messages {
			debug.Raw("prompts", "--- prompt ("+m.Role+") ---\n"+m.Content)
		}
	}

	start := time.Now()
	resp, err := e.provider.Complete(ctx, req)
	duration := time.Since(start)
	name := e.provider.Name()

	observability.ProviderLatency.WithLabelValues(name, req.Model).Observe(duration.Seconds())
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(name, req.Model, "error").Inc()
		return nil, err
	}
	observability.ProviderRequestsTotal.WithLabelValues(name, req.Model, "success").Inc()
	observability.ProviderTokensTotal.WithLabelValues(name, req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(name, req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))

	debug.Log("engine", "completion",
		"model", req.Model,
		"duration", duration,
		"tokens", resp.Usage.TotalTokens,
		"content", debug.Truncate(resp.Content, 200),
	)
	debug.Raw("prompts", "--- completion ---\n"+resp.Content)
	return resp, nil
}
