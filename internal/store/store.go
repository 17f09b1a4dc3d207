// Package store defines the document and vector store contracts used by the
// ranker, plus an in-memory implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Document is one stored record.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// DocumentStore persists structured CV and JD records by collection.
type DocumentStore interface {
	Put(ctx context.Context, collection, id string, data json.RawMessage) error
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	// List returns every document of a collection ordered by id.
	List(ctx context.Context, collection string) ([]Document, error)
}

// VectorEntry is one embedded chunk of a record section.
type VectorEntry struct {
	Key     string
	OwnerID string
	Section string
	Text    string
	Vector  []float32
}

// Filter restricts a vector query. Empty fields do not filter.
type Filter struct {
	OwnerID  string
	Sections []string
}

// Hit is a vector query result. Score is cosine similarity.
type Hit struct {
	Key     string  `json:"key"`
	OwnerID string  `json:"owner_id"`
	Section string  `json:"section"`
	Text    string  `json:"text,omitempty"`
	Score   float64 `json:"score"`
}

// VectorStore persists embeddings by collection.
type VectorStore interface {
	// Upsert replaces every vector of each owner present in entries.
	Upsert(ctx context.Context, collection string, entries []VectorEntry) error
	// Query returns up to topK hits ordered by descending score, ties by key.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Hit, error)
	Count(ctx context.Context, collection string) (int, error)
	// OwnerIDs returns the distinct owners with at least one vector, sorted.
	OwnerIDs(ctx context.Context, collection string) ([]string, error)
	// Vectors returns the entries of one owner ordered by key.
	Vectors(ctx context.Context, collection, ownerID string) ([]VectorEntry, error)
}

// Store is a combined document and vector store.
type Store interface {
	DocumentStore
	VectorStore
	Close() error
}

// SortHits orders hits by descending score, breaking ties by key.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Key < hits[j].Key
	})
}

// Matches reports whether an entry satisfies the filter.
func (f Filter) Matches(ownerID, section string) bool {
	if f.OwnerID != "" && f.OwnerID != ownerID {
		return false
	}
	if len(f.Sections) == 0 {
		return true
	}
	for _, s := range f.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// ChunkKey builds the key of the i-th chunk of a record section.
func ChunkKey(ownerID, section string, i int) string {
	return ownerID + ":" + section + ":" + strconv.Itoa(i)
}
