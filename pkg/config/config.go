// Package config provides unified configuration for the loupe server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (LOUPE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the loupe server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	VectorStore   VectorStoreConfig   `yaml:"vectorstore"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Engine        EngineConfig        `yaml:"engine"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s
	MaxInFlight  int           `yaml:"max_in_flight"` // default: 64, 0 disables
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`     // "openai", "openai-compatible", or "litellm", default: "openai-compatible"
	BaseURL     string        `yaml:"base_url"`     // required
	APIKey      string        `yaml:"api_key"`      // optional
	APIKeyFile  string        `yaml:"api_key_file"` // _file variant for api_key
	Model       string        `yaml:"model"`        // required
	Temperature float64       `yaml:"temperature"`  // default: 0
	MaxTokens   int           `yaml:"max_tokens"`   // default: 2048
	Timeout     time.Duration `yaml:"timeout"`      // default: 120s
	MaxRetries  int           `yaml:"max_retries"`  // default: 3

	// ModelMapping renames models before they reach a LiteLLM proxy,
	// e.g. "default" -> "azure/gpt-4o". Only used by the litellm provider.
	ModelMapping map[string]string `yaml:"model_mapping"`
}

// EmbeddingConfig holds embedding provider settings. BaseURL and APIKey
// fall back to the LLM values when left empty.
type EmbeddingConfig struct {
	BaseURL    string      `yaml:"base_url"`
	APIKey     string      `yaml:"api_key"`
	APIKeyFile string      `yaml:"api_key_file"`
	Model      string      `yaml:"model"`      // required
	Dimensions int         `yaml:"dimensions"` // 0 means learn from first response
	BatchSize  int         `yaml:"batch_size"` // default: 64
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings. RedisAddr empty disables the
// Redis tier; the local LRU tier is always active.
type CacheConfig struct {
	LocalSize     int           `yaml:"local_size"` // default: 2048, 0 disables local tier
	LocalTTL      time.Duration `yaml:"local_ttl"`  // default: 1h
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisTTL      time.Duration `yaml:"redis_ttl"` // default: 24h
}

// VectorStoreConfig holds vector store backend settings.
type VectorStoreConfig struct {
	Backend        string       `yaml:"backend"`         // "qdrant", "sqlite", or "memory", default: "memory"
	ScoreThreshold float64      `yaml:"score_threshold"` // default: 0 (no threshold)
	Qdrant         QdrantConfig `yaml:"qdrant"`
	SQLite         SQLiteConfig `yaml:"sqlite"`
}

// QdrantConfig holds Qdrant-specific settings.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"`
	Timeout    time.Duration `yaml:"timeout"` // default: 30s
}

// SQLiteConfig holds settings for the embedded sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig holds collection catalog settings.
type CatalogConfig struct {
	Backend  string         `yaml:"backend"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// EngineConfig holds the retrieval loop settings.
type EngineConfig struct {
	MaxIterations        int    `yaml:"max_iterations"`        // default: 3
	MaxSubQueries        int    `yaml:"max_sub_queries"`       // default: 3
	TopK                 int    `yaml:"top_k"`                 // default: 10
	MaxEvidence          int    `yaml:"max_evidence"`          // default: 20
	RetrievalConcurrency int    `yaml:"retrieval_concurrency"` // default: 4
	Routing              bool   `yaml:"routing"`               // default: true
	Rerank               bool   `yaml:"rerank"`                // default: false
	DefaultCollection    string `yaml:"default_collection"`    // default: "default"
}

// IngestConfig holds document ingestion settings.
type IngestConfig struct {
	ChunkSize    int           `yaml:"chunk_size"`    // default: 1500
	ChunkOverlap int           `yaml:"chunk_overlap"` // default: 100
	TaskTTL      time.Duration `yaml:"task_ttl"`      // default: 1h
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT validation settings for auth.type=jwt.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// RateLimitConfig holds per-tier request rate limits. A zero RPM means
// no limit for that tier.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"` // default: 0 (unlimited)
	Tiers      map[string]int `yaml:"tiers"`       // tier name -> requests per minute
}

// MCPConfig holds the MCP tool surface settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds slog settings. Debug lists the categories the debug
// package emits for, e.g. "engine,prompts"; the LOUPE_DEBUG environment
// variable takes precedence.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "trace", "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories, default: none
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
			MaxInFlight:  64,
		},
		LLM: LLMConfig{
			Provider:   "openai-compatible",
			MaxTokens:  2048,
			Timeout:    120 * time.Second,
			MaxRetries: 3,
		},
		Embedding: EmbeddingConfig{
			BatchSize: 64,
			Cache: CacheConfig{
				LocalSize: 2048,
				LocalTTL:  time.Hour,
				RedisTTL:  24 * time.Hour,
			},
		},
		VectorStore: VectorStoreConfig{
			Backend: "memory",
			Qdrant: QdrantConfig{
				Timeout: 30 * time.Second,
			},
		},
		Catalog: CatalogConfig{
			Backend: "memory",
			Postgres: PostgresConfig{
				MaxConns:       25,
				MigrateOnStart: true,
			},
		},
		Engine: EngineConfig{
			MaxIterations:        3,
			MaxSubQueries:        3,
			TopK:                 10,
			MaxEvidence:          20,
			RetrievalConcurrency: 4,
			Routing:              true,
			DefaultCollection:    "default",
		},
		Ingest: IngestConfig{
			ChunkSize:    1500,
			ChunkOverlap: 100,
			TaskTTL:      time.Hour,
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
