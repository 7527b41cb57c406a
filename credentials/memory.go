package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential in process memory. Zero value is not
// usable; construct with [NewMemoryStore].
type MemoryStore struct {
	mu   sync.Mutex
	cred Credential
	set  bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		return Credential{}, ErrNotFound
	}
	return s.cred, nil
}

func (s *MemoryStore) Set(_ context.Context, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = cred
	s.set = true
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = Credential{}
	s.set = false
	return nil
}
