package sessionstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/thejadex/RE-VLab/core/session"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]session.Session
}

var _ session.Store = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]session.Session)}
}

func (s *MemoryStore) Save(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// Get drops expired sessions lazily.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if sess.Expired() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
