package docstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps documents in a map. Debug runs patch into it so the
// working tree is never touched.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]string)}
}

func (m *MemoryStore) Load(_ context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[path]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return doc, nil
}

func (m *MemoryStore) Save(_ context.Context, path, content string) error {
	m.mu.Lock()
	m.docs[path] = content
	m.mu.Unlock()
	return nil
}
