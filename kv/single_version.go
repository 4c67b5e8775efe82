package kv

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemorySingleVersionBackend is the in-memory realization of
// SingleVersionBackend, backing the single-version side-store used by
// sequences and simple counters (a single (key BLOB PRIMARY KEY, value
// BLOB) table).
type MemorySingleVersionBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemorySingleVersionBackend() *MemorySingleVersionBackend {
	return &MemorySingleVersionBackend{values: make(map[string][]byte)}
}

func (m *MemorySingleVersionBackend) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemorySingleVersionBackend) Put(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemorySingleVersionBackend) Delete(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, string(key))
	return nil
}

func (m *MemorySingleVersionBackend) Close() error { return nil }

// Keys returns every stored key with the given prefix, sorted. Used by the
// facade to enumerate sequences for diagnostics.
func (m *MemorySingleVersionBackend) Keys(prefix []byte) [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out [][]byte
	for k := range m.values {
		if bytes.HasPrefix([]byte(k), prefix) {
			out = append(out, []byte(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out
}
