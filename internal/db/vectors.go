package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/pgvector/pgvector-go"
)

// Upsert replaces every vector of each owner present in entries within one transaction.
func (db *DB) Upsert(ctx context.Context, collection string, entries []store.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	owners := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range entries {
		if len(e.Vector) != db.dimensions {
			return fmt.Errorf("vector %s has %d dimensions, column expects %d", e.Key, len(e.Vector), db.dimensions)
		}
		if !seen[e.OwnerID] {
			seen[e.OwnerID] = true
			owners = append(owners, e.OwnerID)
		}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM section_vectors WHERE collection = $1 AND owner_id = ANY($2)`,
		collection, owners,
	); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO section_vectors (collection, key, owner_id, section, text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (collection, key) DO UPDATE
			 SET owner_id = EXCLUDED.owner_id, section = EXCLUDED.section, text = EXCLUDED.text,
			     embedding = EXCLUDED.embedding, updated_at = NOW()`,
			collection, e.Key, e.OwnerID, e.Section, e.Text, pgvector.NewVector(e.Vector),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert vectors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit vectors: %w", err)
	}
	return nil
}

// Query runs a cosine-distance nearest neighbour search.
func (db *DB) Query(ctx context.Context, collection string, vector []float32, topK int, filter store.Filter) ([]store.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	sections := filter.Sections
	if sections == nil {
		sections = []string{}
	}

	rows, err := db.pool.Query(ctx,
		`SELECT key, owner_id, section, text, 1 - (embedding <=> $2) AS score
		 FROM section_vectors
		 WHERE collection = $1
		   AND ($3 = '' OR owner_id = $3)
		   AND (cardinality($4::text[]) = 0 OR section = ANY($4::text[]))
		 ORDER BY embedding <=> $2, key
		 LIMIT $5`,
		collection, pgvector.NewVector(vector), filter.OwnerID, sections, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]store.Hit, 0, topK)
	for rows.Next() {
		var h store.Hit
		if err := rows.Scan(&h.Key, &h.OwnerID, &h.Section, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vector hits: %w", err)
	}
	store.SortHits(hits)
	return hits, nil
}

// Count returns the number of vectors stored in a collection.
func (db *DB) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM section_vectors WHERE collection = $1`, collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// OwnerIDs returns the distinct owners with vectors in a collection.
func (db *DB) OwnerIDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT owner_id FROM section_vectors WHERE collection = $1 ORDER BY owner_id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vector owners: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owner id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Vectors returns the entries of one owner ordered by key.
func (db *DB) Vectors(ctx context.Context, collection, ownerID string) ([]store.VectorEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT key, owner_id, section, text, embedding
		 FROM section_vectors WHERE collection = $1 AND owner_id = $2 ORDER BY key`,
		collection, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	defer rows.Close()

	entries := make([]store.VectorEntry, 0)
	for rows.Next() {
		var e store.VectorEntry
		var v pgvector.Vector
		if err := rows.Scan(&e.Key, &e.OwnerID, &e.Section, &e.Text, &v); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		e.Vector = v.Slice()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
