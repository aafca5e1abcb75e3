package shared

import (
	"math"
)

// RoundHalfUp rounds x to the nearest integer, with halves rounded towards +Inf
// (so 66.5 -> 67 and -0.5 -> 0).
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValueOr returns *p, or zero when p is nil. Absent numeric inputs count as 0.
func ValueOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// SameNumber reports whether two optional numbers are identical: both absent,
// or both present with equal values. Two NaNs are the same value here, so a
// stored NaN never reads as a change.
func SameNumber(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if math.IsNaN(*a) || math.IsNaN(*b) {
		return math.IsNaN(*a) && math.IsNaN(*b)
	}
	return *a == *b
}

// IsFinite reports whether v is neither NaN nor an infinity.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// StringSet is an insertion-ordered set of strings compared by exact identity.
type StringSet struct {
	order []string
	index map[string]struct{}
}

// NewStringSet builds a set from values, dropping duplicates while keeping
// first-seen order.
func NewStringSet(values []string) *StringSet {
	s := &StringSet{index: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v if it is not yet present.
func (s *StringSet) Add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.order = append(s.order, v)
}

// Contains reports membership.
func (s *StringSet) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of distinct values.
func (s *StringSet) Len() int { return len(s.order) }

// Values returns the values in insertion order.
func (s *StringSet) Values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
