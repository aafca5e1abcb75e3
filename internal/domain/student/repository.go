package student

import (
	"context"
)

// Repository is the record store port for student records.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// GetByID returns the record keyed by account id.
	// Returns an error matching shared.ErrNotFound if there is none.
	GetByID(ctx context.Context, id string) (*Record, error)

	// Create stores a new record. Returns shared.ErrAlreadyExists on a duplicate id.
	Create(ctx context.Context, r *Record) error

	// Update merges patch into the record and returns the before/after pair.
	// Only the fields the patch names are written.
	// Returns shared.ErrNotFound if the record does not exist.
	Update(ctx context.Context, id string, patch Patch) (Change, error)

	// Delete removes the record and returns the change with a nil After.
	Delete(ctx context.Context, id string) (Change, error)
}
