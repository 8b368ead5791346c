// Package memory provides an in-memory Catalog for testing and
// single-process deployments. Contents are lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

// Catalog is an in-memory collection registry.
type Catalog struct {
	mu          sync.RWMutex
	collections map[string]catalog.Collection
}

// Ensure Catalog implements catalog.Catalog at compile time.
var _ catalog.Catalog = (*Catalog)(nil)

// New creates an empty in-memory catalog.
func New() *Catalog {
	return &Catalog{collections: make(map[string]catalog.Collection)}
}

// Upsert creates the collection or updates its description.
func (c *Catalog) Upsert(_ context.Context, coll catalog.Collection) error {
	coll.Name = api.NormalizeCollectionName(coll.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.collections[coll.Name]; ok {
		existing.Description = coll.Description
		c.collections[coll.Name] = existing
		return nil
	}

	if coll.CreatedAt.IsZero() {
		coll.CreatedAt = time.Now().UTC()
	}
	c.collections[coll.Name] = coll
	return nil
}

// Get returns the named collection or catalog.ErrNotFound.
func (c *Catalog) Get(_ context.Context, name string) (catalog.Collection, error) {
	name = api.NormalizeCollectionName(name)

	c.mu.RLock()
	defer c.mu.RUnlock()

	coll, ok := c.collections[name]
	if !ok {
		return catalog.Collection{}, catalog.ErrNotFound
	}
	return coll, nil
}

// List returns all collections ordered by name.
func (c *Catalog) List(_ context.Context) ([]catalog.Collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.Collection, 0, len(c.collections))
	for _, coll := range c.collections {
		out = append(out, coll)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the named collection.
func (c *Catalog) Delete(_ context.Context, name string) error {
	name = api.NormalizeCollectionName(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.collections[name]; !ok {
		return catalog.ErrNotFound
	}
	delete(c.collections, name)
	return nil
}

// HealthCheck always returns nil for the in-memory catalog.
func (c *Catalog) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory catalog.
func (c *Catalog) Close() error {
	return nil
}
