// Command server runs the loupe retrieval engine API.
//
// Configuration comes from loupe.yaml (discovered or passed via -config)
// with LOUPE_* environment overrides; see pkg/config for the full layout.
// A .env file in the working directory is loaded first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loupelabs/loupe/pkg/auth"
	"github.com/loupelabs/loupe/pkg/auth/apikey"
	"github.com/loupelabs/loupe/pkg/auth/jwtauth"
	"github.com/loupelabs/loupe/pkg/auth/noop"
	"github.com/loupelabs/loupe/pkg/catalog"
	catmem "github.com/loupelabs/loupe/pkg/catalog/memory"
	catpg "github.com/loupelabs/loupe/pkg/catalog/postgres"
	"github.com/loupelabs/loupe/pkg/config"
	"github.com/loupelabs/loupe/pkg/debug"
	"github.com/loupelabs/loupe/pkg/embedding"
	"github.com/loupelabs/loupe/pkg/engine"
	"github.com/loupelabs/loupe/pkg/ingest"
	"github.com/loupelabs/loupe/pkg/mcpserver"
	"github.com/loupelabs/loupe/pkg/observability"
	"github.com/loupelabs/loupe/pkg/provider"
	"github.com/loupelabs/loupe/pkg/provider/litellm"
	"github.com/loupelabs/loupe/pkg/provider/openaicompat"
	"github.com/loupelabs/loupe/pkg/transport"
	transporthttp "github.com/loupelabs/loupe/pkg/transport/http"
	"github.com/loupelabs/loupe/pkg/vectordb"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (default: discover loupe.yaml)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	debug.Init(cfg.Logging.Debug)

	// Completion provider.
	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	// Embedder with cache tiers.
	embedder, redisCache, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	// Vector store.
	store, err := vectordb.Open(vectordb.Config{
		Backend:       cfg.VectorStore.Backend,
		QdrantURL:     cfg.VectorStore.Qdrant.URL,
		QdrantAPIKey:  cfg.VectorStore.Qdrant.APIKey,
		QdrantTimeout: cfg.VectorStore.Qdrant.Timeout,
		SQLitePath:    cfg.VectorStore.SQLite.Path,
	})
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	store = vectordb.WithRetry(store, cfg.LLM.MaxRetries)
	defer store.Close()

	// Collection catalog.
	cat, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer cat.Close()

	// Query engine.
	eng, err := engine.New(prov, embedder, store, cat, engine.Config{
		Model:                cfg.LLM.Model,
		Temperature:          cfg.LLM.Temperature,
		MaxTokens:            cfg.LLM.MaxTokens,
		MaxIterations:        cfg.Engine.MaxIterations,
		MaxSubQueries:        cfg.Engine.MaxSubQueries,
		TopK:                 cfg.Engine.TopK,
		MaxEvidence:          cfg.Engine.MaxEvidence,
		RetrievalConcurrency: cfg.Engine.RetrievalConcurrency,
		ScoreThreshold:       cfg.VectorStore.ScoreThreshold,
		Routing:              cfg.Engine.Routing,
		Rerank:               cfg.Engine.Rerank,
		DefaultCollection:    cfg.Engine.DefaultCollection,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// Ingestion pipeline and task tracker.
	pipeline, err := ingest.NewPipeline(embedder, store, cat, ingest.PipelineConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	tracker := ingest.NewTracker(cfg.Ingest.TaskTTL)

	// REST API.
	restAPI := transporthttp.NewAPI(eng, pipeline, tracker, cat, transporthttp.APIConfig{
		DefaultCollection: cfg.Engine.DefaultCollection,
	})
	mux := restAPI.Routes()

	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}
	if cfg.MCP.Enabled {
		mux.Handle(cfg.MCP.Path, mcpserver.New(eng, cat).Handler())
		slog.Info("mcp tools enabled", "path", cfg.MCP.Path)
	}

	// Auth chain, rate limiter, middleware stack.
	authChain, err := buildAuthChain(cfg)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.DefaultRPM > 0 || len(cfg.Auth.RateLimit.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(cfg.Auth.RateLimit.Tiers, cfg.Auth.RateLimit.DefaultRPM)
	}

	bypass := []string{"/healthz", "/readyz"}
	if cfg.Observability.Metrics.Enabled {
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	}

	handler := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
		observability.MetricsMiddleware,
		auth.Middleware(authChain, limiter, bypass),
		transport.InFlightLimit(cfg.Server.MaxInFlight),
	)(mux)

	srv := transporthttp.NewServer(handler,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("loupe starting",
		"port", cfg.Server.Port,
		"llm", cfg.LLM.Model,
		"embedding", cfg.Embedding.Model,
		"vectorstore", cfg.VectorStore.Backend,
		"catalog", cfg.Catalog.Backend,
		"auth", cfg.Auth.Type,
	)
	return srv.ListenAndServe()
}

// buildProvider creates the completion provider named by llm.provider and
// wraps it with transient-error retries.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	var (
		client provider.Provider
		err    error
	)
	switch cfg.LLM.Provider {
	case "openai":
		client, err = openaicompat.New(openaicompat.Config{
			Name:     "openai",
			BaseURL:  cfg.LLM.BaseURL,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.LLM.Timeout,
			JSONMode: true,
		})
	case "openai-compatible", "":
		client, err = openaicompat.New(openaicompat.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Timeout: cfg.LLM.Timeout,
		})
	case "litellm":
		client, err = litellm.New(litellm.Config{
			BaseURL:      cfg.LLM.BaseURL,
			APIKey:       cfg.LLM.APIKey,
			Timeout:      cfg.LLM.Timeout,
			ModelMapping: cfg.LLM.ModelMapping,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}
	return provider.WithRetry(client, cfg.LLM.MaxRetries), nil
}

// buildEmbedder creates the embedding client, retry wrapper, and cache
// tiers. The Redis cache is returned separately so run can close it.
func buildEmbedder(cfg *config.Config) (embedding.Embedder, *embedding.RedisCache, error) {
	baseURL := cfg.Embedding.BaseURL
	if baseURL == "" {
		baseURL = cfg.LLM.BaseURL
	}
	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = cfg.LLM.APIKey
	}

	openaiEmb, err := embedding.NewOpenAI(embedding.Config{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	emb := embedding.WithRetry(openaiEmb, cfg.LLM.MaxRetries)

	cacheCfg := cfg.Embedding.Cache
	var local *embedding.LocalLRU
	if cacheCfg.LocalSize > 0 {
		local = embedding.NewLocalLRU(cacheCfg.LocalSize)
	}
	var redisCache *embedding.RedisCache
	var shared embedding.Cache
	if cacheCfg.RedisAddr != "" {
		redisCache, err = embedding.NewRedisCache(cacheCfg.RedisAddr, cacheCfg.RedisPassword, cacheCfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		shared = redisCache
		slog.Info("embedding cache", "redis", cacheCfg.RedisAddr)
	}
	if local != nil || shared != nil {
		emb = embedding.NewCached(emb, local, shared, cacheCfg.LocalTTL, cacheCfg.RedisTTL)
	}
	return emb, redisCache, nil
}

// buildCatalog creates the collection catalog named by catalog.backend.
func buildCatalog(cfg *config.Config) (catalog.Catalog, error) {
	switch cfg.Catalog.Backend {
	case "memory", "":
		return catmem.New(), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return catpg.New(ctx, catpg.Config{
			DSN:            cfg.Catalog.Postgres.DSN,
			MaxConns:       cfg.Catalog.Postgres.MaxConns,
			MigrateOnStart: cfg.Catalog.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.Catalog.Backend)
	}
}

// buildAuthChain assembles the authenticator chain for auth.type.
func buildAuthChain(cfg *config.Config) (*auth.Chain, error) {
	switch cfg.Auth.Type {
	case "none", "":
		return &auth.Chain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, nil
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.Entry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
				},
			})
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("auth.type is \"apikey\" but auth.api_keys is empty")
		}
		return &auth.Chain{Authenticators: []auth.Authenticator{apikey.New(entries)}}, nil
	case "jwt":
		ja := jwtauth.New(jwtauth.Config{
			Secret:   []byte(cfg.Auth.JWT.Secret),
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
		})
		return &auth.Chain{Authenticators: []auth.Authenticator{ja}}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}
}
