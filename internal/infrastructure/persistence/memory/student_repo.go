package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
)

// StudentRepository is an in-memory student.Repository.
//
// Like the database trigger in the Postgres store, the repository itself
// reports every committed update and delete to its watchers, whoever the
// writer was.
type StudentRepository struct {
	mu       sync.RWMutex
	records  map[string]*student.Record
	watchers []func(student.Change)
	ops      atomic.Int64
	now      func() time.Time
}

// NewStudentRepository creates an empty repository.
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{
		records: make(map[string]*student.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Watch registers fn to receive every committed update and delete. fn runs
// after the write is visible and outside the repository lock, so it may
// write back to the repository.
func (r *StudentRepository) Watch(fn func(student.Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// Ops returns how many operations the repository has served.
func (r *StudentRepository) Ops() int64 { return r.ops.Load() }

// GetByID implements student.Repository.
func (r *StudentRepository) GetByID(_ context.Context, id string) (*student.Record, error) {
	r.ops.Add(1)
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return rec.Clone(), nil
}

// Create implements student.Repository. Creates do not notify watchers.
func (r *StudentRepository) Create(_ context.Context, rec *student.Record) error {
	r.ops.Add(1)
	if err := rec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return shared.NewDomainError("student", "Create", shared.ErrAlreadyExists, "student record already exists")
	}
	c := rec.Clone()
	now := r.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.records[rec.ID] = c
	return nil
}

// Update implements student.Repository.
func (r *StudentRepository) Update(_ context.Context, id string, patch student.Patch) (student.Change, error) {
	r.ops.Add(1)
	if err := patch.Validate(); err != nil {
		return student.Change{}, err
	}

	r.mu.Lock()
	before, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return student.Change{}, shared.ErrStudentNotFound
	}
	after := patch.Apply(before, r.now())
	r.records[id] = after
	change := student.Change{AccountID: id, Before: before.Clone(), After: after.Clone()}
	watchers := r.watchers
	r.mu.Unlock()

	notify(watchers, change)
	return change, nil
}

// Delete implements student.Repository.
func (r *StudentRepository) Delete(_ context.Context, id string) (student.Change, error) {
	r.ops.Add(1)
	r.mu.Lock()
	before, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return student.Change{}, shared.ErrStudentNotFound
	}
	delete(r.records, id)
	change := student.Change{AccountID: id, Before: before}
	watchers := r.watchers
	r.mu.Unlock()

	notify(watchers, change)
	return change, nil
}

// notify hands each watcher its own copy of the snapshots.
func notify(watchers []func(student.Change), change student.Change) {
	for _, fn := range watchers {
		fn(student.Change{AccountID: change.AccountID, Before: change.Before.Clone(), After: change.After.Clone()})
	}
}
