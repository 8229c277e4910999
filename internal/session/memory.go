package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory revocation store for tests and DSN-less
// local runs.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time

	// FailWith, when set, is returned from every call to exercise the
	// fail-closed behavior of callers.
	FailWith error
}

// NewMemoryStore constructs the store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	if s.FailWith != nil {
		return false, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
