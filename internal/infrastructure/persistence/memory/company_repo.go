package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// CompanyRepository is an in-memory company.Repository.
type CompanyRepository struct {
	mu       sync.RWMutex
	profiles []*company.Profile
	nextID   int64
	ops      atomic.Int64
}

// NewCompanyRepository creates an empty repository.
func NewCompanyRepository() *CompanyRepository {
	return &CompanyRepository{nextID: 1}
}

// Ops returns how many operations the repository has served.
func (r *CompanyRepository) Ops() int64 { return r.ops.Load() }

// FindByName implements company.Repository. Profiles are kept in id order, so
// the first match is the lowest id.
func (r *CompanyRepository) FindByName(_ context.Context, name string) (*company.Profile, error) {
	r.ops.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Name == name {
			return cloneProfile(p), nil
		}
	}
	return nil, shared.ErrCompanyNotFound
}

// Upsert implements company.Repository.
func (r *CompanyRepository) Upsert(_ context.Context, p *company.Profile) error {
	r.ops.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()

	c := cloneProfile(p)
	c.UpdatedAt = time.Now().UTC()
	for i, existing := range r.profiles {
		if existing.Name == p.Name {
			c.ID = existing.ID
			r.profiles[i] = c
			return nil
		}
	}
	c.ID = r.nextID
	r.nextID++
	r.profiles = append(r.profiles, c)
	return nil
}

// Add inserts a profile even if the name already exists, to model duplicate names.
func (r *CompanyRepository) Add(p *company.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := cloneProfile(p)
	if c.ID == 0 {
		c.ID = r.nextID
	}
	if c.ID >= r.nextID {
		r.nextID = c.ID + 1
	}
	r.profiles = append(r.profiles, c)
	sort.Slice(r.profiles, func(i, j int) bool { return r.profiles[i].ID < r.profiles[j].ID })
}

func cloneProfile(p *company.Profile) *company.Profile {
	c := *p
	c.RequiredSkills = append([]string(nil), p.RequiredSkills...)
	return &c
}
