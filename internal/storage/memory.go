package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is a Cache that lives for one process. It backs USE_CACHE=false
// runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	payload json.RawMessage
	updated time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || (m.ttl > 0 && m.now().Sub(e.updated) > m.ttl) {
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{payload: raw, updated: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LastModified(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e.updated, ok, nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
