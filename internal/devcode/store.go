// Package devcode provides an in-memory store of issued plaintext codes by
// destination, used only when dev code mode is enabled (GET /api/dev/code).
package devcode

import (
	"context"
	"sync"
	"time"
)

// Store holds plaintext codes by destination for dev-only retrieval. Not used
// in production; config refuses to enable it there.
type Store interface {
	// Put stores code for destination until expiresAt.
	Put(ctx context.Context, destination, code string, expiresAt time.Time)
	// Get returns the code for destination if present and not expired.
	Get(ctx context.Context, destination string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev code store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores code for destination until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, destination, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[destination] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for destination if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, destination string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[destination]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, destination)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
