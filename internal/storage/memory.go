package storage

import (
	"context"
	"sync"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// Memory keeps the encoded snapshot in process memory. Nothing survives a
// restart.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{}
}

// Load decodes the last saved snapshot.
func (m *Memory) Load(_ context.Context) LoadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Decode(m.data)
}

// Save encodes and keeps eps.
func (m *Memory) Save(_ context.Context, eps []endpoint.Endpoint) error {
	data, err := Encode(eps)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
