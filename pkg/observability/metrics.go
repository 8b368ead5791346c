// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the loupe query engine.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loupe_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// InFlightRequests tracks the number of HTTP requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loupe_inflight_requests",
			Help: "Requests currently in flight",
		},
	)

	// InFlightRejectedTotal counts requests rejected by the in-flight limiter.
	InFlightRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loupe_inflight_rejected_total",
			Help: "Requests rejected because the in-flight limit was reached",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter,
	// by service tier.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"tier"},
	)

	// ProviderRequestsTotal counts requests sent to backend LLM providers.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records backend provider latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loupe_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (prompt/completion).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// EmbeddingCacheTotal counts embedding cache lookups by tier and outcome.
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_embedding_cache_total",
			Help: "Embedding cache lookups",
		},
		[]string{"tier", "outcome"},
	)

	// EmbeddingLatency records embedding backend latency in seconds.
	EmbeddingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loupe_embedding_latency_seconds",
			Help:    "Embedding latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// RetrievalLatency records vector store search latency in seconds by backend.
	RetrievalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loupe_retrieval_latency_seconds",
			Help:    "Vector store search latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"backend"},
	)

	// QueriesTotal counts completed queries by mode and termination reason.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_queries_total",
			Help: "Completed queries",
		},
		[]string{"mode", "termination"},
	)

	// QueryIterations records the number of retrieval passes used per query.
	QueryIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loupe_query_iterations",
			Help:    "Retrieval passes per query",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// IngestTasksTotal counts ingestion tasks by source kind and outcome.
	IngestTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loupe_ingest_tasks_total",
			Help: "Ingestion tasks",
		},
		[]string{"kind", "status"},
	)

	// IngestChunksTotal counts chunks written to the vector store.
	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loupe_ingest_chunks_total",
			Help: "Chunks stored by ingestion",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		InFlightRejectedTotal,
		RateLimitRejectedTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		EmbeddingCacheTotal,
		EmbeddingLatency,
		RetrievalLatency,
		QueriesTotal,
		QueryIterations,
		IngestTasksTotal,
		IngestChunksTotal,
	)
}
