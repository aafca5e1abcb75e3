package student

import (
	"fmt"

	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// Scales of the numeric inputs.
const (
	maxPercent = 100
	maxCGPA    = 10
)

// Validate rejects numeric source fields the formulas cannot score: NaN,
// infinities and values outside their scale. Absent fields are valid.
func (r *Record) Validate() error {
	return validateSources("Validate", r.AttendancePercent, r.CGPA, r.InternalMarksPercent, r.ResumeScore)
}

// Validate checks the numeric fields the patch writes. Derived fields must
// already be in range.
func (p Patch) Validate() error {
	if err := validateSources("Patch", p.AttendancePercent, p.CGPA, p.InternalMarksPercent, p.ResumeScore); err != nil {
		return err
	}
	if p.RiskScore != nil && (*p.RiskScore < 0 || *p.RiskScore > maxPercent) {
		return invalidField("Patch", "riskScore", maxPercent)
	}
	if p.RiskLevel != nil && !p.RiskLevel.IsValid() {
		return shared.NewDomainError("student", "Patch", shared.ErrInvalidArgument,
			fmt.Sprintf("riskLevel %q is not a known level", *p.RiskLevel))
	}
	return nil
}

func validateSources(op string, attendance, cgpa, internalMarks, resume *float64) error {
	fields := []struct {
		name string
		v    *float64
		max  float64
	}{
		{"attendancePercent", attendance, maxPercent},
		{"cgpa", cgpa, maxCGPA},
		{"internalMarksPercent", internalMarks, maxPercent},
		{"resumeScore", resume, maxPercent},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if v := *f.v; !shared.IsFinite(v) || v < 0 || v > f.max {
			return invalidField(op, f.name, f.max)
		}
	}
	return nil
}

func invalidField(op, field string, max float64) error {
	return shared.NewDomainError("student", op, shared.ErrInvalidArgument,
		fmt.Sprintf("%s must be a number between 0 and %g", field, max))
}
