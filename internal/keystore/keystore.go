// Package keystore keeps raw vault keys apart from the ciphertext records.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrKeyNotFound is returned when no key is stored under the ID.
var ErrKeyNotFound = errors.New("key not found")

// Store persists base64 raw keys by vault ID.
type Store interface {
	PutKey(ctx context.Context, id, rawKey string) error
	GetKey(ctx context.Context, id string) (string, error)
	DeleteKey(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]string)}
}

func (s *MemoryStore) PutKey(ctx context.Context, id, rawKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = rawKey
	return nil
}

func (s *MemoryStore) GetKey(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return "", fmt.Errorf("key %s: %w", id, ErrKeyNotFound)
	}
	return k, nil
}

func (s *MemoryStore) DeleteKey(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
