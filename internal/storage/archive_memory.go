package storage

import (
	"context"
	"sync"
)

// MemoryArchive is a map-backed archive used for testing.
type MemoryArchive struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // componentKey -> versionID -> payload
}

// NewMemoryArchive constructs an in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{data: make(map[string]map[string][]byte)}
}

func (m *MemoryArchive) Store(ctx context.Context, componentKey, versionID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[componentKey]; !ok {
		m.data[componentKey] = make(map[string][]byte)
	}
	m.data[componentKey][versionID] = append([]byte{}, data...)
	return nil
}

func (m *MemoryArchive) Fetch(ctx context.Context, componentKey, versionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payloads, ok := m.data[componentKey]
	if !ok {
		return nil, &NotFoundError{Resource: "archive", Key: versionID}
	}
	payload, ok := payloads[versionID]
	if !ok {
		return nil, &NotFoundError{Resource: "archive", Key: versionID}
	}
	return append([]byte{}, payload...), nil
}

func (m *MemoryArchive) Remove(ctx context.Context, componentKey, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payloads, ok := m.data[componentKey]; ok {
		delete(payloads, versionID)
	}
	return nil
}

func (m *MemoryArchive) Close() error { return nil }
