package runs

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps runs in process memory. Ids start at 1.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	runs   map[int64]Record
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[int64]Record), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, input, output json.RawMessage) (Saved, error) {
	if err := CheckDocuments(input, output); err != nil {
		return Saved{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := Record{
		ID:        m.nextID,
		CreatedAt: m.now().UTC(),
		Input:     append(json.RawMessage(nil), input...),
		Output:    append(json.RawMessage(nil), output...),
	}
	m.runs[rec.ID] = rec
	return Saved{ID: rec.ID, CreatedAt: rec.CreatedAt}, nil
}

func (m *MemoryStore) Get(_ context.Context, id int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.runs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Close() error { return nil }
