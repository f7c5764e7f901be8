package session

import (
	"context"
	"sync"
)

// MemoryCursors keeps cursors in process memory.
type MemoryCursors struct {
	mu sync.Mutex
	m  map[string]Cursor
}

func NewMemoryCursors() *MemoryCursors {
	return &MemoryCursors{m: make(map[string]Cursor)}
}

func (m *MemoryCursors) Load(_ context.Context, session string) (Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.m[session]
	return c, ok, nil
}

func (m *MemoryCursors) Save(_ context.Context, session string, c Cursor) error {
	m.mu.Lock()
	m.m[session] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryCursors) Reset(_ context.Context, session string) error {
	m.mu.Lock()
	delete(m.m, session)
	m.mu.Unlock()
	return nil
}
