package session

import (
	"context"
	"match-chat/domain"
	"match-chat/errors"
	"sync"
)

// MemoryStore keeps sessions in process. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.UserID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.UserID)}
}

func (s *MemoryStore) Put(key string, user domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = user
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

func (s *MemoryStore) Get(_ context.Context, key string) (domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.sessions[key]
	if !ok {
		return "", errors.ErrSessionNotFound
	}
	return user, nil
}
