package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-portal/portal-core/internal/domain/account"
)

// ClaimsStore implements account.ClaimsStore on Redis. Each uid's claim set is
// one JSON value without expiry, overwritten whole on every write.
type ClaimsStore struct {
	cache *Cache
}

// NewClaimsStore creates a claims store over cache.
func NewClaimsStore(cache *Cache) *ClaimsStore {
	return &ClaimsStore{cache: cache}
}

// SetClaims implements account.ClaimsStore.
func (s *ClaimsStore) SetClaims(ctx context.Context, uid string, claims account.ClaimSet) error {
	if err := s.cache.Set(ctx, ClaimsKey(uid), claims, 0); err != nil {
		return fmt.Errorf("set claims: %w", err)
	}
	return nil
}

// GetClaims implements account.ClaimsStore.
func (s *ClaimsStore) GetClaims(ctx context.Context, uid string) (account.ClaimSet, bool, error) {
	var claims account.ClaimSet
	err := s.cache.Get(ctx, ClaimsKey(uid), &claims)
	if errors.Is(err, ErrCacheMiss) {
		return account.ClaimSet{}, false, nil
	}
	if err != nil {
		return account.ClaimSet{}, false, fmt.Errorf("get claims: %w", err)
	}
	return claims, true, nil
}
