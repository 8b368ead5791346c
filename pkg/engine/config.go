package engine

// Config holds the retrieval loop settings.
type Config struct {
	// Model is the completion model used for every engine LLM call.
	Model string

	// Temperature is passed to the provider on every call.
	Temperature float64

	// MaxTokens bounds each completion. Zero uses the provider default.
	MaxTokens int

	// MaxIterations caps retrieval passes when the request does not carry
	// its own limit. Zero or negative means the default of 3.
	MaxIterations int

	// MaxSubQueries caps how many sub-queries decomposition and reflection
	// may propose per pass. Zero or negative means the default of 3.
	MaxSubQueries int

	// TopK is the per-sub-query result count when the request does not
	// carry its own. Zero or negative means the default of 10.
	TopK int

	// MaxEvidence caps the chunks handed to reflection and synthesis to
	// bound prompt size. Zero or negative means the default of 20.
	MaxEvidence int

	// RetrievalConcurrency bounds parallel sub-query retrievals within one
	// pass. Zero or negative means the default of 4.
	RetrievalConcurrency int

	// ScoreThreshold drops matches scoring below it. Zero disables.
	ScoreThreshold float64

	// Routing asks the model which collections are relevant when the
	// request names none. Disabled, every collection is searched.
	Routing bool

	// Rerank enables the relevance filter over retrieved chunks.
	Rerank bool

	// DefaultCollection is searched when the catalog lists nothing.
	// Empty means "default".
	DefaultCollection string
}

func (c Config) maxIterations() int {
	if c.MaxIterations <= 0 {
		return 3
	}
	return c.MaxIterations
}

func (c Config) maxSubQueries() int {
	if c.MaxSubQueries <= 0 {
		return 3
	}
	return c.MaxSubQueries
}

func (c Config) topK() int {
	if c.TopK <= 0 {
		return 10
	}
	return c.TopK
}

func (c Config) maxEvidence() int {
	if c.MaxEvidence <= 0 {
		return 20
	}
	return c.MaxEvidence
}

func (c Config) concurrency() int {
	if c.RetrievalConcurrency <= 0 {
		return 4
	}
	return c.RetrievalConcurrency
}

func (c Config) defaultCollection() string {
	if c.DefaultCollection == "" {
		return "default"
	}
	return c.DefaultCollection
}
