package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockDocumentStore is an in-memory DocumentStore for testing
type MockDocumentStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
	FailPut bool
}

// NewMockDocumentStore creates an empty mock store
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{objects: make(map[string][]byte)}
}

func (m *MockDocumentStore) Put(_ context.Context, key, _ string, body []byte) error {
	if m.FailPut {
		return fmt.Errorf("mock store: put %s failed", key)
	}
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), body...)
	m.mu.Unlock()
	return nil
}

func (m *MockDocumentStore) PresignedURL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("file not found in mock store: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

func (m *MockDocumentStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Exists reports whether key has been stored
func (m *MockDocumentStore) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Keys lists the stored keys in sorted order.
func (m *MockDocumentStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
