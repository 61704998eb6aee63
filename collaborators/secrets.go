package collaborators

import (
	"context"
	"sync"

	"github.com/agentplatform/core/llmgateway"
)

// MemorySecretStore is an in-memory SecretStore (spec §6:
// `SecretStore.{get,put,delete,has}`), suitable for development and
// tests. Production deployments are expected to swap in a vault-backed
// adapter.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemorySecretStore builds an empty store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]string)}
}

var _ llmgateway.SecretStore = (*MemorySecretStore)(nil)

// Get implements llmgateway.SecretStore.
func (s *MemorySecretStore) Get(_ context.Context, slug string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[slug]
	return v, ok, nil
}

// Put stores or overwrites the secret for slug.
func (s *MemorySecretStore) Put(_ context.Context, slug, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[slug] = value
	return nil
}

// Delete removes the secret for slug, if present.
func (s *MemorySecretStore) Delete(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, slug)
	return nil
}

// Has reports whether a secret is present for slug.
func (s *MemorySecretStore) Has(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[slug]
	return ok, nil
}
