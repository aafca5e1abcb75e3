package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// AccountRepository is an in-memory account.Repository.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
	ops      atomic.Int64
}

// NewAccountRepository creates an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*account.Account)}
}

// Ops returns how many operations the repository has served.
func (r *AccountRepository) Ops() int64 { return r.ops.Load() }

// GetByID implements account.Repository.
func (r *AccountRepository) GetByID(_ context.Context, id string) (*account.Account, error) {
	r.ops.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

// GetByEmail implements account.Repository.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.ops.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c, nil
		}
	}
	return nil, shared.ErrAccountNotFound
}

// Create implements account.Repository.
func (r *AccountRepository) Create(_ context.Context, a *account.Account) error {
	r.ops.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.ID]; ok {
		return shared.NewDomainError("account", "Create", shared.ErrAlreadyExists, "user account already exists")
	}
	for _, existing := range r.accounts {
		if a.Email != "" && strings.EqualFold(existing.Email, a.Email) {
			return shared.NewDomainError("account", "Create", shared.ErrAlreadyExists, "email already registered")
		}
	}
	c := *a
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.accounts[a.ID] = &c
	return nil
}

// UpdateRole implements account.Repository.
func (r *AccountRepository) UpdateRole(_ context.Context, id string, role account.Role, branch string) error {
	r.ops.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.Role = role
	a.Branch = branch
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// List implements account.Repository.
func (r *AccountRepository) List(_ context.Context, afterID string, limit int) ([]*account.Account, error) {
	r.ops.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*account.Account, 0, len(ids))
	for _, id := range ids {
		c := *r.accounts[id]
		out = append(out, &c)
	}
	return out, nil
}
