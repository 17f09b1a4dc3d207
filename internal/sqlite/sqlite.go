// Package sqlite provides a single-file document and vector store for local
// and offline runs. Vector search is an exact scan computed in Go.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/store"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);

		CREATE TABLE IF NOT EXISTS section_vectors (
			collection TEXT NOT NULL,
			key TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			section TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			embedding BLOB NOT NULL,
			PRIMARY KEY (collection, key)
		);

		CREATE INDEX IF NOT EXISTS idx_section_vectors_owner ON section_vectors(collection, owner_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Put stores a JSON document, replacing any previous version.
func (d *DB) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("putting document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get retrieves a document by collection and id.
func (d *DB) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var data string
	err := d.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s/%s: %w", collection, id, err)
	}
	return json.RawMessage(data), nil
}

// List returns every document of a collection ordered by id.
func (d *DB) List(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, store.Document{ID: id, Data: json.RawMessage(data)})
	}
	return docs, rows.Err()
}

// Upsert replaces every vector of each owner present in entries.
func (d *DB) Upsert(ctx context.Context, collection string, entries []store.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cleared := make(map[string]bool)
	for _, e := range entries {
		if cleared[e.OwnerID] {
			continue
		}
		cleared[e.OwnerID] = true
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM section_vectors WHERE collection = ? AND owner_id = ?`, collection, e.OwnerID,
		); err != nil {
			return fmt.Errorf("clearing vectors for %s: %w", e.OwnerID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO section_vectors (collection, key, owner_id, section, text, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing vector insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, collection, e.Key, e.OwnerID, e.Section, e.Text, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("inserting vector %s: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

// Query scans the matching vectors and returns the best topK by cosine similarity.
func (d *DB) Query(ctx context.Context, collection string, vector []float32, topK int, filter store.Filter) ([]store.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	query := `SELECT key, owner_id, section, text, embedding FROM section_vectors WHERE collection = ?`
	args := []any{collection}
	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if len(filter.Sections) > 0 {
		query += ` AND section IN (?` + strings.Repeat(`, ?`, len(filter.Sections)-1) + `)`
		for _, s := range filter.Sections {
			args = append(args, s)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]store.Hit, 0)
	for rows.Next() {
		var h store.Hit
		var blob []byte
		if err := rows.Scan(&h.Key, &h.OwnerID, &h.Section, &h.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding vector %s: %w", h.Key, err)
		}
		h.Score = embedding.CosineSimilarity(vector, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of vectors stored in a collection.
func (d *DB) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM section_vectors WHERE collection = ?`, collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// OwnerIDs returns the distinct owners with vectors in a collection.
func (d *DB) OwnerIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT owner_id FROM section_vectors WHERE collection = ? ORDER BY owner_id`, collection)
	if err != nil {
		return nil, fmt.Errorf("listing vector owners: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning owner id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Vectors returns the entries of one owner ordered by key.
func (d *DB) Vectors(ctx context.Context, collection, ownerID string) ([]store.VectorEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT key, owner_id, section, text, embedding FROM section_vectors
		 WHERE collection = ? AND owner_id = ? ORDER BY key`, collection, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading vectors: %w", err)
	}
	defer rows.Close()

	entries := make([]store.VectorEntry, 0)
	for rows.Next() {
		var e store.VectorEntry
		var blob []byte
		if err := rows.Scan(&e.Key, &e.OwnerID, &e.Section, &e.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		if e.Vector, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("decoding vector %s: %w", e.Key, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
