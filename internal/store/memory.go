package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryKV keeps everything in process memory. Used in development and tests.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[Namespace]map[string]json.RawMessage
}

var _ KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[Namespace]map[string]json.RawMessage)}
}

func (m *MemoryKV) GetAll(_ context.Context, ns Namespace) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.data[ns]))
	for id, v := range m.data[ns] {
		out[id] = clone(v)
	}
	return out, nil
}

func (m *MemoryKV) SetAll(_ context.Context, ns Namespace, values map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make(map[string]json.RawMessage, len(values))
	for id, v := range values {
		entries[id] = clone(v)
	}
	m.data[ns] = entries
	return nil
}

func (m *MemoryKV) GetOne(_ context.Context, ns Namespace, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[ns][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (m *MemoryKV) MergeOne(_ context.Context, ns Namespace, id string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[ns] == nil {
		m.data[ns] = make(map[string]json.RawMessage)
	}
	merged, err := mergeJSON(m.data[ns][id], value)
	if err != nil {
		return err
	}
	m.data[ns][id] = clone(merged)
	return nil
}

func clone(v json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), v...)
}
