// Package memory provides an in-memory implementation of storage.ObjectStore
// for development and testing. Data is not persisted across restarts.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/agentplatform/core/storage"
)

// Store is an in-memory implementation of storage.ObjectStore. It is safe
// for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

var _ storage.ObjectStore = (*Store)(nil)

// New returns an empty in-memory object store.
func New() *Store {
	return &Store{objects: make(map[string][]byte), types: make(map[string]string)}
}

func fullKey(bucket, key string) string { return bucket + "/" + key }

func (s *Store) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	k := fullKey(bucket, key)
	s.objects[k] = cp
	s.types[k] = contentType
	return nil
}

func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[fullKey(bucket, key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *Store) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := fullKey(bucket, key)
	delete(s.objects, k)
	delete(s.types, k)
	return nil
}

func (s *Store) List(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	full := fullKey(bucket, prefix)
	out := make([]string, 0)
	for k := range s.objects {
		if strings.HasPrefix(k, full) {
			out = append(out, strings.TrimPrefix(k, bucket+"/"))
		}
	}
	return out, nil
}

func (s *Store) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[fullKey(bucket, key)]
	return ok, nil
}
