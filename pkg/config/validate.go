package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// llm.base_url and llm.model are required.
	if c.LLM.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm.base_url is required"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model is required"))
	}

	// llm.provider must be a known value if set.
	switch c.LLM.Provider {
	case "openai", "openai-compatible", "litellm", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be \"openai\", \"openai-compatible\", or \"litellm\", got %q", c.LLM.Provider))
	}

	// embedding.model is required.
	if c.Embedding.Model == "" {
		errs = append(errs, fmt.Errorf("embedding.model is required"))
	}

	// vectorstore.backend must be a known value.
	switch c.VectorStore.Backend {
	case "qdrant":
		if c.VectorStore.Qdrant.URL == "" {
			errs = append(errs, fmt.Errorf("vectorstore.qdrant.url is required when vectorstore.backend is \"qdrant\""))
		}
	case "sqlite":
		if c.VectorStore.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("vectorstore.sqlite.path is required when vectorstore.backend is \"sqlite\""))
		}
	case "memory":
		// valid
	default:
		errs = append(errs, fmt.Errorf("vectorstore.backend must be \"qdrant\", \"sqlite\", or \"memory\", got %q", c.VectorStore.Backend))
	}

	if c.VectorStore.ScoreThreshold < 0 || c.VectorStore.ScoreThreshold > 1 {
		errs = append(errs, fmt.Errorf("vectorstore.score_threshold must be in [0, 1], got %v", c.VectorStore.ScoreThreshold))
	}

	// catalog.backend must be a known value.
	switch c.Catalog.Backend {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("catalog.backend must be \"memory\" or \"postgres\", got %q", c.Catalog.Backend))
	}

	// If catalog.backend is "postgres", DSN or DSNFile must be set.
	if c.Catalog.Backend == "postgres" {
		if c.Catalog.Postgres.DSN == "" && c.Catalog.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("catalog.postgres.dsn or catalog.postgres.dsn_file is required when catalog.backend is \"postgres\""))
		}
	}

	// engine bounds.
	if c.Engine.MaxIterations < 1 || c.Engine.MaxIterations > 10 {
		errs = append(errs, fmt.Errorf("engine.max_iterations must be in [1, 10], got %d", c.Engine.MaxIterations))
	}
	if c.Engine.MaxSubQueries < 1 {
		errs = append(errs, fmt.Errorf("engine.max_sub_queries must be >= 1, got %d", c.Engine.MaxSubQueries))
	}
	if c.Engine.TopK < 1 {
		errs = append(errs, fmt.Errorf("engine.top_k must be >= 1, got %d", c.Engine.TopK))
	}
	if c.Engine.MaxEvidence < 1 {
		errs = append(errs, fmt.Errorf("engine.max_evidence must be >= 1, got %d", c.Engine.MaxEvidence))
	}
	if c.Engine.RetrievalConcurrency < 1 {
		errs = append(errs, fmt.Errorf("engine.retrieval_concurrency must be >= 1, got %d", c.Engine.RetrievalConcurrency))
	}
	if c.Engine.DefaultCollection == "" {
		errs = append(errs, fmt.Errorf("engine.default_collection is required"))
	}

	// ingest bounds.
	if c.Ingest.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("ingest.chunk_size must be >= 1, got %d", c.Ingest.ChunkSize))
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap))
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey":
		// valid
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// logging values.
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be \"trace\", \"debug\", \"info\", \"warn\", or \"error\", got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
