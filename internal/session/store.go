// Package session persists authenticated-user records for the server and for local clients.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// ErrNotFound is returned when no session exists for the requested id.
var ErrNotFound = errors.New("session not found")

// Store persists sessions by id.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
