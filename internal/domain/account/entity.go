// Package account models user accounts, their roles and the identity claim sets
// attached to them.
package account

import (
	"time"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleFaculty Role = "Faculty"
	RoleStudent Role = "Student"
)

// ParseRole validates a role name. Matching is exact.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return r, true
	}
	return "", false
}

// ClaimSet is the application claim map attached to an identity and embedded
// in every token issued for it.
type ClaimSet struct {
	Admin   bool   `json:"admin"`
	Faculty bool   `json:"faculty"`
	Student bool   `json:"student"`
	Branch  string `json:"branch"`
}

// ClaimsForRole maps a role to its claim set. All four keys are always set,
// so overwriting with the result never leaves a stale flag behind.
func ClaimsForRole(role Role, branch string) ClaimSet {
	return ClaimSet{
		Admin:   role == RoleAdmin,
		Faculty: role == RoleFaculty,
		Student: role == RoleStudent,
		Branch:  branch,
	}
}

// Role derives the role a claim set represents. ok is false when no flag is set.
// Admin wins over Faculty, which wins over Student.
func (c ClaimSet) Role() (role Role, ok bool) {
	switch {
	case c.Admin:
		return RoleAdmin, true
	case c.Faculty:
		return RoleFaculty, true
	case c.Student:
		return RoleStudent, true
	}
	return "", false
}

// Account is the persisted user account. Role and Branch mirror the claim set,
// which is authoritative.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Branch       string    `json:"branch"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MirrorsClaims reports whether the stored role and branch agree with claims.
func (a *Account) MirrorsClaims(claims ClaimSet) bool {
	role, ok := claims.Role()
	if !ok {
		return a.Role == "" && a.Branch == claims.Branch
	}
	return a.Role == role && a.Branch == claims.Branch
}
