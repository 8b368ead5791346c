package vectordb

import (
	"fmt"
	"time"
)

// Config selects and configures a Store backend.
type Config struct {
	// Backend is one of "memory", "sqlite", "qdrant".
	Backend string

	// Qdrant settings, used when Backend is "qdrant".
	QdrantURL     string
	QdrantAPIKey  string
	QdrantTimeout time.Duration

	// SQLitePath is the database file, used when Backend is "sqlite".
	SQLitePath string
}

// Open creates the Store named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "qdrant":
		return NewQdrant(QdrantConfig{
			URL:     cfg.QdrantURL,
			APIKey:  cfg.QdrantAPIKey,
			Timeout: cfg.QdrantTimeout,
		})
	default:
		return nil, fmt.Errorf("vectordb: unknown backend %q", cfg.Backend)
	}
}
