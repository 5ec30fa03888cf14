package services

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryObjectStore keeps objects in memory. Used by tests and by local runs
// without AWS credentials.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryObjectStore creates an empty in-memory store
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// SetAsMockForTesting sets this store as the process object store
func (m *MemoryObjectStore) SetAsMockForTesting() {
	SetObjectStore(m)
}

func (m *MemoryObjectStore) PutObject(_ context.Context, key, contentType string, body io.Reader) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}
	m.mu.Lock()
	m.objects[key] = content
	m.types[key] = contentType
	m.mu.Unlock()
	return nil
}

func (m *MemoryObjectStore) PresignGet(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if !m.Exists(key) {
		return "", fmt.Errorf("object not found in memory store: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

func (m *MemoryObjectStore) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	delete(m.types, key)
	m.mu.Unlock()
	return nil
}

// Exists reports whether key has been stored
func (m *MemoryObjectStore) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// ContentType returns the content type an object was stored with
func (m *MemoryObjectStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}

// Keys returns every stored key
func (m *MemoryObjectStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
