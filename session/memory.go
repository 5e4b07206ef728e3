package session

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a process-local [Store].
type MemoryStore struct {
	mu     sync.Mutex
	token  string
	user   *UserRecord
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed sets the stored pair directly. A nil user seeds a bare token.
func (s *MemoryStore) Seed(token string, user *UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}
}

// Writes returns how many successful Write calls the store has seen.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) Read(context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		s.user = nil
		return nil, nil
	}
	rec := &Record{Token: s.token}
	if s.user != nil {
		u := *s.user
		rec.User = &u
	}
	return rec, nil
}

func (s *MemoryStore) Write(_ context.Context, token string, user UserRecord) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	s.writes++
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}
