package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimsForRole_AlwaysFullSet(t *testing.T) {
	assert.Equal(t, ClaimSet{Admin: false, Faculty: true, Student: false, Branch: "ECE"}, ClaimsForRole(RoleFaculty, "ECE"))
	assert.Equal(t, ClaimSet{Admin: true, Branch: ""}, ClaimsForRole(RoleAdmin, ""))
	assert.Equal(t, ClaimSet{Student: true, Branch: "CSE"}, ClaimsForRole(RoleStudent, "CSE"))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("Faculty")
	assert.True(t, ok)
	assert.Equal(t, RoleFaculty, r)

	for _, bad := range []string{"", "faculty", "Superuser", " Admin"} {
		_, ok := ParseRole(bad)
		assert.False(t, ok, bad)
	}
}

func TestClaimSetRole(t *testing.T) {
	r, ok := ClaimsForRole(RoleStudent, "CSE").Role()
	assert.True(t, ok)
	assert.Equal(t, RoleStudent, r)

	_, ok = ClaimSet{}.Role()
	assert.False(t, ok)
}

func TestMirrorsClaims(t *testing.T) {
	a := &Account{ID: "u1", Role: RoleStudent, Branch: "CSE"}
	assert.True(t, a.MirrorsClaims(ClaimsForRole(RoleStudent, "CSE")))
	assert.False(t, a.MirrorsClaims(ClaimsForRole(RoleFaculty, "CSE")))
	assert.False(t, a.MirrorsClaims(ClaimsForRole(RoleStudent, "ECE")))
}

func TestCallerFromContext(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	assert.False(t, ok)

	_, ok = CallerFromContext(WithCaller(context.Background(), Caller{}))
	assert.False(t, ok)

	c, ok := CallerFromContext(WithCaller(context.Background(), Caller{UID: "u1", Claims: ClaimSet{Admin: true}}))
	assert.True(t, ok)
	assert.True(t, c.IsAdmin())
}
