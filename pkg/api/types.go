package api

// Query is a resolved question ready for the engine: request knobs have been
// validated and defaulted by the transport layer.
type Query struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Collection    string `json:"collection,omitempty"`
	MaxIterations int    `json:"max_iterations"`
	TopK          int    `json:"top_k"`
}

// SubQuery is a decomposed retrieval question. Normalized carries the
// lowercase whitespace-collapsed form used for deduplication; Iteration
// records the pass that produced it (1 for the initial decomposition).
type SubQuery struct {
	Text       string `json:"text"`
	Normalized string `json:"-"`
	Iteration  int    `json:"iteration"`
}

// SourceRef locates a chunk within the corpus.
type SourceRef struct {
	Collection string `json:"collection"`
	Document   string `json:"document,omitempty"`
	Position   int    `json:"position,omitempty"`
}

// Evidence is one retrieved chunk. Seq is the global retrieval sequence
// number within a query, used for stable ordering; it is assigned when the
// chunk first enters the evidence set.
type Evidence struct {
	ChunkID  string    `json:"chunk_id"`
	Text     string    `json:"text"`
	Source   SourceRef `json:"source"`
	Score    float64   `json:"score"`
	SubQuery string    `json:"sub_query"`
	Seq      int       `json:"-"`
}

// RetrievalRecord traces one sub-query's retrieval within an iteration.
// Error is empty on success; a failed sub-query is skipped, not fatal.
type RetrievalRecord struct {
	SubQuery string `json:"sub_query"`
	Matches  int    `json:"matches"`
	Error    string `json:"error,omitempty"`
}

// ReflectionRecord traces the reflection outcome of an iteration.
type ReflectionRecord struct {
	Sufficient   bool     `json:"sufficient"`
	KnowledgeGap string   `json:"knowledge_gap,omitempty"`
	FollowUps    []string `json:"follow_ups,omitempty"`
}

// IterationRecord traces one retrieval pass of the loop.
type IterationRecord struct {
	Iteration   int               `json:"iteration"`
	SubQueries  []string          `json:"sub_queries"`
	Retrievals  []RetrievalRecord `json:"retrievals"`
	NewEvidence int               `json:"new_evidence"`
	Reflection  *ReflectionRecord `json:"reflection,omitempty"`
	Usage       Usage             `json:"usage"`
}

// TerminationReason explains why the loop stopped.
type TerminationReason string

const (
	// TerminationSufficient: reflection judged the evidence sufficient.
	TerminationSufficient TerminationReason = "sufficient"
	// TerminationBoundReached: the iteration cap was hit.
	TerminationBoundReached TerminationReason = "bound_reached"
	// TerminationNoNewSubQueries: every follow-up deduplicated away.
	TerminationNoNewSubQueries TerminationReason = "no_new_subqueries"
	// TerminationNoEvidence: the loop ended with an empty evidence set.
	TerminationNoEvidence TerminationReason = "no_evidence"
	// TerminationNaive: single-pass retrieval, no reflection involved.
	TerminationNaive TerminationReason = "naive"
)

// Citation links a bracketed reference in the answer text to its chunk.
type Citation struct {
	ChunkID string    `json:"chunk_id"`
	Source  SourceRef `json:"source"`
}

// Answer is the final result of a query: synthesized text, citations in
// first-mention order, and the full iteration trace.
type Answer struct {
	ID             string            `json:"id"`
	Question       string            `json:"question"`
	Text           string            `json:"text"`
	Citations      []Citation        `json:"citations"`
	Iterations     []IterationRecord `json:"iterations"`
	IterationsUsed int               `json:"iterations_used"`
	Termination    TerminationReason `json:"termination"`
	Usage          Usage             `json:"usage"`
	DurationMS     int64             `json:"duration_ms"`
}

// Usage aggregates token counts across LLM calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// QueryRequest is the body of POST /v1/query and POST /v1/naive-query.
// Nil knobs fall back to server configuration.
type QueryRequest struct {
	Question      string `json:"question"`
	Collection    string `json:"collection,omitempty"`
	MaxIterations *int   `json:"max_iterations,omitempty"`
	TopK          *int   `json:"top_k,omitempty"`
}

// IngestFilesRequest is the body of POST /v1/ingest/files.
type IngestFilesRequest struct {
	Paths       []string `json:"paths"`
	Collection  string   `json:"collection"`
	Description string   `json:"description,omitempty"`
}

// IngestWebRequest is the body of POST /v1/ingest/web.
type IngestWebRequest struct {
	URLs        []string `json:"urls"`
	Collection  string   `json:"collection"`
	Description string   `json:"description,omitempty"`
}

// IngestAccepted acknowledges an async ingestion request.
type IngestAccepted struct {
	TaskID string `json:"task_id"`
}
