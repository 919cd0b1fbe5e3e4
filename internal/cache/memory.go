package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Backend. It never expires entries itself.
type Memory struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	m.m[key] = append([]byte(nil), val...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	for k := range m.m {
		if strings.HasPrefix(k, KeyPrefix) {
			delete(m.m, k)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}
