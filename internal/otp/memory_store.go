package otp

import (
	"context"
	"sync"
	"time"
)

type storedCode struct {
	hash      []byte
	expiresAt time.Time
}

type memoryStore struct {
	mu    sync.Mutex
	codes map[string]storedCode
}

// NewMemoryStore builds an in-memory code store for tests and local runs
// without Redis.
func NewMemoryStore() CodeStore {
	return &memoryStore{codes: make(map[string]storedCode)}
}

func (s *memoryStore) Save(_ context.Context, phone string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = storedCode{hash: hash, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *memoryStore) Get(_ context.Context, phone string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[phone]
	if !ok || time.Now().After(code.expiresAt) {
		delete(s.codes, phone)
		return nil, ErrNoCode
	}
	return code.hash, nil
}

func (s *memoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}
