package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jonathan/cv-ranker/internal/embedding"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]map[string]json.RawMessage
	vectors map[string]map[string]VectorEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]map[string]json.RawMessage),
		vectors: make(map[string]map[string]VectorEntry),
	}
}

// Put stores a copy of data under collection/id.
func (m *Memory) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[collection]
	if !ok {
		c = make(map[string]json.RawMessage)
		m.docs[collection] = c
	}
	c[id] = append(json.RawMessage(nil), data...)
	return nil
}

// Get returns the document stored under collection/id.
func (m *Memory) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), data...), nil
}

// List returns every document of a collection ordered by id.
func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.docs[collection]))
	for id, data := range m.docs[collection] {
		docs = append(docs, Document{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Upsert replaces every vector of each owner present in entries.
func (m *Memory) Upsert(ctx context.Context, collection string, entries []VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.vectors[collection]
	if !ok {
		c = make(map[string]VectorEntry)
		m.vectors[collection] = c
	}
	owners := make(map[string]bool)
	for _, e := range entries {
		owners[e.OwnerID] = true
	}
	for key, e := range c {
		if owners[e.OwnerID] {
			delete(c, key)
		}
	}
	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		c[e.Key] = e
	}
	return nil
}

// Query scans the collection and returns the best topK hits.
func (m *Memory) Query(ctx context.Context, collection string, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	hits := make([]Hit, 0)
	for _, e := range m.vectors[collection] {
		if !filter.Matches(e.OwnerID, e.Section) {
			continue
		}
		hits = append(hits, Hit{
			Key:     e.Key,
			OwnerID: e.OwnerID,
			Section: e.Section,
			Text:    e.Text,
			Score:   embedding.CosineSimilarity(vector, e.Vector),
		})
	}
	m.mu.RUnlock()

	SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of vectors in a collection.
func (m *Memory) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors[collection]), nil
}

// OwnerIDs returns the distinct owners with vectors in a collection.
func (m *Memory) OwnerIDs(ctx context.Context, collection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, e := range m.vectors[collection] {
		if !seen[e.OwnerID] {
			seen[e.OwnerID] = true
			ids = append(ids, e.OwnerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Vectors returns copies of the entries of one owner ordered by key.
func (m *Memory) Vectors(ctx context.Context, collection, ownerID string) ([]VectorEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]VectorEntry, 0)
	for _, e := range m.vectors[collection] {
		if e.OwnerID == ownerID {
			e.Vector = append([]float32(nil), e.Vector...)
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
