// Package auth implements the token lifecycle: credential stores and
// OAuth2 token managers that exchange, cache, and renew credentials.
package auth

import (
	"context"
	"sync"

	"github.com/paperledge/papi/pkg/papi"
)

// MemoryStore is a process-local credential store. Deployments that
// share one token lifecycle across processes use papi.NATSKVStore
// instead.
type MemoryStore struct {
	mu   sync.RWMutex
	cred *papi.Credential
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored credential, or nil when none is stored.
func (s *MemoryStore) Get(_ context.Context) (*papi.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred == nil {
		return nil, nil
	}

	cred := *s.cred

	return &cred, nil
}

// Set stores the credential, replacing any previous one.
func (s *MemoryStore) Set(_ context.Context, cred *papi.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cred == nil {
		s.cred = nil

		return nil
	}

	copied := *cred
	s.cred = &copied

	return nil
}

// Clear removes the stored credential.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = nil

	return nil
}
