package shared

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"unauthenticated", ErrNoCaller, CodeUnauthenticated},
		{"permission denied", ErrAdminRequired, CodePermissionDenied},
		{"invalid argument", ErrInvalidRole, CodeInvalidArgument},
		{"not found", ErrStudentNotFound, CodeNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", ErrAccountNotFound), CodeNotFound},
		{"plain", errors.New("connection reset"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestMessageOf_HidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("dial tcp 10.0.0.1:5432: refused")))
	assert.Equal(t, "student record not found", MessageOf(ErrStudentNotFound))
}

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("redis down")
	err := WrapError("account", "SetClaims", ErrExternalService, "claims write failed", cause)

	assert.True(t, errors.Is(err, ErrExternalService))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrStudentNotFound))
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 67, RoundHalfUp(200.0/3.0))
	assert.Equal(t, 3, RoundHalfUp(2.5))
	assert.Equal(t, 2, RoundHalfUp(2.49))
	assert.Equal(t, 0, RoundHalfUp(-0.5))
}

func TestSameNumber(t *testing.T) {
	assert.True(t, SameNumber(nil, nil))
	assert.True(t, SameNumber(Float(7.5), Float(7.5)))
	assert.False(t, SameNumber(nil, Float(0)))
	assert.False(t, SameNumber(Float(7.5), Float(7.6)))
	assert.True(t, SameNumber(Float(math.NaN()), Float(math.NaN())))
	assert.False(t, SameNumber(Float(math.NaN()), Float(0)))
	assert.False(t, SameNumber(nil, Float(math.NaN())))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(0))
	assert.True(t, IsFinite(-12.5))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(1)))
	assert.False(t, IsFinite(math.Inf(-1)))
}

func TestStringSet(t *testing.T) {
	s := NewStringSet([]string{"Go", " SQL ", "Go", "", "AWS", ""})
	assert.Equal(t, []string{"Go", " SQL ", "", "AWS"}, s.Values())
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Contains(" SQL "))
	assert.True(t, s.Contains(""))
	assert.False(t, s.Contains("SQL"), "membership is exact, whitespace included")
	assert.False(t, s.Contains("go"))
}

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	e := NewBaseEvent(EventRoleAssigned, "u1")

	assert.Equal(t, EventRoleAssigned, e.EventType())
	assert.Equal(t, "u1", e.AggregateID())
	assert.Equal(t, time.UTC, e.OccurredAt().Location())
	assert.False(t, e.OccurredAt().Before(before))
}
