// Package session provides SessionStore implementations: an in-memory
// store for tests and single-process deployments, and a Redis store for
// everything else.
package session

import (
	"context"
	"sync"

	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
)

// MemoryStore is an in-memory implementation of ports.SessionStore.
type MemoryStore struct {
	sessions map[string]core.Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() ports.SessionStore {
	return &MemoryStore{
		sessions: make(map[string]core.Session),
	}
}

// Load returns the session for sid, or the zero-value default.
func (s *MemoryStore) Load(ctx context.Context, sid string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessions[sid], nil
}

// Save persists the session under sid.
func (s *MemoryStore) Save(ctx context.Context, sid string, session core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sid] = session
	return nil
}

// Destroy removes the session; a subsequent Load returns the default.
func (s *MemoryStore) Destroy(ctx context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sid)
	return nil
}
