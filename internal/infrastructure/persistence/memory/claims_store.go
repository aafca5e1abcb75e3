package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/campus-portal/portal-core/internal/domain/account"
)

// ClaimsStore is an in-memory account.ClaimsStore.
type ClaimsStore struct {
	mu     sync.RWMutex
	claims map[string]account.ClaimSet
	ops    atomic.Int64
}

// NewClaimsStore creates an empty store.
func NewClaimsStore() *ClaimsStore {
	return &ClaimsStore{claims: make(map[string]account.ClaimSet)}
}

// Ops returns how many operations the store has served.
func (s *ClaimsStore) Ops() int64 { return s.ops.Load() }

// SetClaims implements account.ClaimsStore.
func (s *ClaimsStore) SetClaims(_ context.Context, uid string, claims account.ClaimSet) error {
	s.ops.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[uid] = claims
	return nil
}

// GetClaims implements account.ClaimsStore.
func (s *ClaimsStore) GetClaims(_ context.Context, uid string) (account.ClaimSet, bool, error) {
	s.ops.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[uid]
	return c, ok, nil
}
