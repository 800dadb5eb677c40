package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store that also records every write.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
	writes map[string][]string
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
		writes: make(map[string][]string),
	}
}

func memKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, namespace, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[memKey(namespace, key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, namespace, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(namespace, key)
	m.values[k] = value
	m.writes[k] = append(m.writes[k], value)
	return nil
}

// Writes returns every value put at key, in order.
func (m *Memory) Writes(namespace, key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.writes[memKey(namespace, key)]
	out := make([]string, len(w))
	copy(out, w)
	return out
}
