// Package company holds employer profiles and the skill-gap analysis against them.
package company

import (
	"context"
	"time"
)

// Profile is an employer's required skill set, looked up by exact name.
type Profile struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	RequiredSkills []string  `json:"requiredSkills"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Repository is the record store port for company profiles.
type Repository interface {
	// FindByName returns the first profile whose name matches exactly.
	// Names are not unique; ties resolve to the lowest id.
	// Returns an error matching shared.ErrNotFound if none matches.
	FindByName(ctx context.Context, name string) (*Profile, error)

	// Upsert creates or replaces the profile with the same name and lowest id.
	Upsert(ctx context.Context, p *Profile) error
}
