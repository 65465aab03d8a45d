package graph

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// Upsert stores a copy of rec keyed by its id.
func (m *MemStore) Upsert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Get returns all records matching where, ordered by id.
func (m *MemStore) Get(_ context.Context, where Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, id := range slices.Sorted(maps.Keys(m.records)) {
		rec := m.records[id]
		if matches(where, rec.Metadata) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// GetByID returns the record for id, or nil if not found.
func (m *MemStore) GetByID(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	rec = cloneRecord(rec)
	return &rec, nil
}

// QueryByEmbedding scans every matching record and returns the topK most
// similar. Ties break by id.
func (m *MemStore) QueryByEmbedding(ctx context.Context, vec []float32, topK int, where Filter) ([]Hit, error) {
	recs, err := m.Get(ctx, where)
	if err != nil {
		return nil, err
	}
	return rankByEmbedding(recs, vec, topK), nil
}

// Count returns the number of stored records.
func (m *MemStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// rankByEmbedding scores recs against vec and keeps the best topK.
func rankByEmbedding(recs []Record, vec []float32, topK int) []Hit {
	if topK <= 0 {
		return nil
	}
	hits := make([]Hit, 0, len(recs))
	for _, rec := range recs {
		hits = append(hits, Hit{Record: rec, Score: CosineSimilarity(vec, rec.Embedding)})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func cloneRecord(rec Record) Record {
	rec.Embedding = slices.Clone(rec.Embedding)
	rec.Metadata = maps.Clone(rec.Metadata)
	return rec
}
