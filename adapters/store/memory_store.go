package store

import (
	"context"
	"sync"
	"time"

	"github.com/helios-labs/walletgate/ports"
)

// MemoryKeyStore is an in-memory implementation of the KeyStore interface,
// used in tests and single-instance deployments.
type MemoryKeyStore struct {
	invalidated map[string]time.Time
	mu          sync.RWMutex
}

// NewMemoryKeyStore creates a new in-memory key store
func NewMemoryKeyStore() ports.KeyStore {
	return &MemoryKeyStore{
		invalidated: make(map[string]time.Time),
	}
}

// Invalidate marks an ID as used/revoked until expiry
func (s *MemoryKeyStore) Invalidate(ctx context.Context, id string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime := time.Now().Add(expiry)
	s.invalidated[id] = expiryTime

	// Cleanup goroutine so the map does not grow without bound
	go func() {
		time.Sleep(expiry)

		s.mu.Lock()
		defer s.mu.Unlock()

		// Only delete if the expiry time hasn't been pushed out since
		if stored, exists := s.invalidated[id]; exists && !stored.After(expiryTime) {
			delete(s.invalidated, id)
		}
	}()

	return nil
}

// IsInvalidated checks whether an ID has been used/revoked
func (s *MemoryKeyStore) IsInvalidated(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidated[id]
	if !exists {
		return false, nil
	}

	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}
