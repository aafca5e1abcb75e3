package account

import (
	"context"
)

// Repository is the record store port for user accounts.
type Repository interface {
	// GetByID returns the account. Returns shared.ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByEmail returns the account with the given email. Returns shared.ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Create stores a new account. Returns shared.ErrAlreadyExists on duplicate id or email.
	Create(ctx context.Context, a *Account) error

	// UpdateRole overwrites the role and branch fields only.
	// Returns shared.ErrNotFound if the account does not exist.
	UpdateRole(ctx context.Context, id string, role Role, branch string) error

	// List returns accounts ordered by id, starting after afterID.
	List(ctx context.Context, afterID string, limit int) ([]*Account, error)
}

// ClaimsStore is the identity provider's claim map storage.
type ClaimsStore interface {
	// SetClaims overwrites the identity's full claim set.
	SetClaims(ctx context.Context, uid string, claims ClaimSet) error

	// GetClaims returns the identity's claim set. ok is false if none was ever set.
	GetClaims(ctx context.Context, uid string) (claims ClaimSet, ok bool, err error)
}
