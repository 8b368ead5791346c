// Package postgres provides a PostgreSQL implementation of catalog.Catalog.
// It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

// Catalog is a PostgreSQL-backed collection registry.
type Catalog struct {
	pool *pgxpool.Pool
}

// Ensure Catalog implements catalog.Catalog at compile time.
var _ catalog.Catalog = (*Catalog)(nil)

// New creates a new PostgreSQL catalog with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Catalog, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	c := &Catalog{pool: pool}

	if cfg.MigrateOnStart {
		if err := c.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return c, nil
}

// Upsert creates the collection or updates its description. CreatedAt is
// preserved on update.
func (c *Catalog) Upsert(ctx context.Context, coll catalog.Collection) error {
	name := api.NormalizeCollectionName(coll.Name)
	createdAt := coll.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO collections (name, description, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
	`, name, coll.Description, createdAt)
	if err != nil {
		return fmt.Errorf("upserting collection: %w", err)
	}
	return nil
}

// Get returns the named collection or catalog.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, name string) (catalog.Collection, error) {
	name = api.NormalizeCollectionName(name)

	var coll catalog.Collection
	err := c.pool.QueryRow(ctx, `
		SELECT name, description, created_at FROM collections WHERE name = $1
	`, name).Scan(&coll.Name, &coll.Description, &coll.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Collection{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Collection{}, fmt.Errorf("querying collection: %w", err)
	}
	return coll, nil
}

// List returns all collections ordered by name.
func (c *Catalog) List(ctx context.Context) ([]catalog.Collection, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT name, description, created_at FROM collections ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var out []catalog.Collection
	for rows.Next() {
		var coll catalog.Collection
		if err := rows.Scan(&coll.Name, &coll.Description, &coll.CreatedAt); err != nil {
			return nil, fmt.Errorf("reading collection row: %w", err)
		}
		out = append(out, coll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collections: %w", err)
	}
	return out, nil
}

// Delete removes the named collection.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	name = api.NormalizeCollectionName(name)

	result, err := c.pool.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (c *Catalog) HealthCheck(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases the connection pool.
func (c *Catalog) Close() error {
	c.pool.Close()
	return nil
}
