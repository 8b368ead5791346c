package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LOUPE_CONFIG env, ./loupe.yaml,
//     ~/.config/loupe/config.yaml, /etc/loupe/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LOUPE_CONFIG environment variable
// 3. ./loupe.yaml in the current directory
// 4. ~/.config/loupe/config.yaml
// 5. /etc/loupe/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check LOUPE_CONFIG env var.
	if envPath := os.Getenv("LOUPE_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{"loupe.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "loupe", "config.yaml"))
	}
	candidates = append(candidates, "/etc/loupe/config.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps LOUPE_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOUPE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOUPE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LOUPE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LOUPE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LOUPE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LOUPE_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("LOUPE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("LOUPE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("LOUPE_REDIS_ADDR"); v != "" {
		cfg.Embedding.Cache.RedisAddr = v
	}
	if v := os.Getenv("LOUPE_VECTORSTORE"); v != "" {
		cfg.VectorStore.Backend = v
	}
	if v := os.Getenv("LOUPE_QDRANT_URL"); v != "" {
		cfg.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("LOUPE_QDRANT_API_KEY"); v != "" {
		cfg.VectorStore.Qdrant.APIKey = v
	}
	if v := os.Getenv("LOUPE_SQLITE_PATH"); v != "" {
		cfg.VectorStore.SQLite.Path = v
	}
	if v := os.Getenv("LOUPE_CATALOG"); v != "" {
		cfg.Catalog.Backend = v
	}
	if v := os.Getenv("LOUPE_POSTGRES_DSN"); v != "" {
		cfg.Catalog.Postgres.DSN = v
	}
	if v := os.Getenv("LOUPE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxIterations = n
		}
	}
	if v := os.Getenv("LOUPE_DEFAULT_COLLECTION"); v != "" {
		cfg.Engine.DefaultCollection = v
	}
	if v := os.Getenv("LOUPE_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("LOUPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOUPE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOUPE_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}

	// LOUPE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("LOUPE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// llm.api_key_file -> llm.api_key
	if cfg.LLM.APIKeyFile != "" && cfg.LLM.APIKey == "" {
		val, err := readSecretFile(cfg.LLM.APIKeyFile)
		if err != nil {
			return fmt.Errorf("llm.api_key_file: %w", err)
		}
		cfg.LLM.APIKey = val
	}

	// embedding.api_key_file -> embedding.api_key
	if cfg.Embedding.APIKeyFile != "" && cfg.Embedding.APIKey == "" {
		val, err := readSecretFile(cfg.Embedding.APIKeyFile)
		if err != nil {
			return fmt.Errorf("embedding.api_key_file: %w", err)
		}
		cfg.Embedding.APIKey = val
	}

	// vectorstore.qdrant.api_key_file -> vectorstore.qdrant.api_key
	if cfg.VectorStore.Qdrant.APIKeyFile != "" && cfg.VectorStore.Qdrant.APIKey == "" {
		val, err := readSecretFile(cfg.VectorStore.Qdrant.APIKeyFile)
		if err != nil {
			return fmt.Errorf("vectorstore.qdrant.api_key_file: %w", err)
		}
		cfg.VectorStore.Qdrant.APIKey = val
	}

	// catalog.postgres.dsn_file -> catalog.postgres.dsn
	if cfg.Catalog.Postgres.DSNFile != "" && cfg.Catalog.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Catalog.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("catalog.postgres.dsn_file: %w", err)
		}
		cfg.Catalog.Postgres.DSN = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
