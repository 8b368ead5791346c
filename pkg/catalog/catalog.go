package catalog

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for catalog operations.
var (
	// ErrNotFound is returned when a collection does not exist.
	ErrNotFound = errors.New("collection not found")
)

// Collection describes one searchable collection.
type Collection struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Catalog is the registry of collections.
type Catalog interface {
	// Upsert creates the collection or, if it exists, updates its
	// description. CreatedAt is preserved on update.
	Upsert(ctx context.Context, c Collection) error

	// Get returns the named collection or ErrNotFound.
	Get(ctx context.Context, name string) (Collection, error)

	// List returns all collections ordered by name.
	List(ctx context.Context) ([]Collection, error)

	// Delete removes the named collection or returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources.
	Close() error
}
