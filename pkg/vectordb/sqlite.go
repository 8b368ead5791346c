package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/loupelabs/loupe/pkg/api"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dims       INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS points (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	vector     BLOB NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	PRIMARY KEY (collection, id),
	FOREIGN KEY (collection) REFERENCES collections(name)
);
`

// SQLite is an embedded Store backed by modernc.org/sqlite. Vectors are
// stored as little-endian float32 BLOBs and scored in-process with a
// brute-force cosine scan.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("vectordb: sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Name identifies the backend.
func (s *SQLite) Name() string { return "sqlite" }

// EnsureCollection creates the collection row if absent.
func (s *SQLite) EnsureCollection(ctx context.Context, name string, dims int) error {
	name = api.NormalizeCollectionName(name)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dims) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, dims)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

func (s *SQLite) collectionExists(ctx context.Context, name string) (bool, error) {
	var dims int
	err := s.db.QueryRowContext(ctx, `SELECT dims FROM collections WHERE name = ?`, name).Scan(&dims)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up collection: %w", err)
	}
	return true, nil
}

// Upsert inserts or replaces points in the named collection.
func (s *SQLite) Upsert(ctx context.Context, collection string, points []Point) error {
	collection = api.NormalizeCollectionName(collection)
	if len(points) == 0 {
		return nil
	}

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (collection, id, vector, content, metadata) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET vector=excluded.vector, content=excluded.content, metadata=excluded.metadata`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, p.ID, encodeSQLiteVector(p.Vector), p.Content, string(meta)); err != nil {
			return fmt.Errorf("upserting point %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Search brute-force scans the collection and returns the topK points by
// cosine similarity, best first.
func (s *SQLite) Search(ctx context.Context, collection string, vector []float32, topK int, scoreThreshold float64) ([]Match, error) {
	collection = api.NormalizeCollectionName(collection)
	if len(vector) == 0 || topK <= 0 {
		return nil, fmt.Errorf("vectordb: search requires a non-empty vector and topK > 0")
	}

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, content, metadata FROM points WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("scanning points: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id      string
			blob    []byte
			content string
			meta    string
		)
		if err := rows.Scan(&id, &blob, &content, &meta); err != nil {
			return nil, fmt.Errorf("reading point: %w", err)
		}

		score := cosineSimilarity(vector, decodeSQLiteVector(blob))
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}

		metadata := make(map[string]string)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
				return nil, fmt.Errorf("parsing metadata for %s: %w", id, err)
			}
		}
		matches = append(matches, Match{ID: id, Score: score, Content: content, Metadata: metadata})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteCollection removes the collection and all its points.
func (s *SQLite) DeleteCollection(ctx context.Context, name string) error {
	name = api.NormalizeCollectionName(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func encodeSQLiteVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeSQLiteVector(b []byte) []float32 {
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}
