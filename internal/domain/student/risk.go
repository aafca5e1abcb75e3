package student

import (
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// Risk weights. CGPA is on a 0-10 scale and is converted to a percentage first.
const (
	riskAttendanceWeight = 0.4
	riskCGPAWeight       = 0.3
	riskInternalWeight   = 0.3

	riskHighBelow     = 60
	riskModerateBelow = 75
)

// RiskAssessment is the derived risk projection of a record.
type RiskAssessment struct {
	Score int
	Level RiskLevel
}

// ComputeRisk scores the three source fields. Absent inputs count as 0.
// NaN, infinite or out-of-scale inputs are rejected with an invalid-argument
// error instead of being scored.
func ComputeRisk(attendance, cgpa, internalMarks *float64) (RiskAssessment, error) {
	if err := validateSources("ComputeRisk", attendance, cgpa, internalMarks, nil); err != nil {
		return RiskAssessment{}, err
	}

	cgpaPercent := shared.ValueOr(cgpa) * 10
	raw := riskAttendanceWeight*shared.ValueOr(attendance) +
		riskCGPAWeight*cgpaPercent +
		riskInternalWeight*shared.ValueOr(internalMarks)

	score := shared.ClampInt(shared.RoundHalfUp(raw), 0, 100)
	return RiskAssessment{Score: score, Level: RiskLevelFor(score)}, nil
}

// RiskOf scores a record.
func RiskOf(r *Record) (RiskAssessment, error) {
	return ComputeRisk(r.AttendancePercent, r.CGPA, r.InternalMarksPercent)
}

// RiskLevelFor classifies a rounded risk score.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score < riskHighBelow:
		return RiskHigh
	case score < riskModerateBelow:
		return RiskModerate
	default:
		return RiskSafe
	}
}

// SourceFieldsChanged reports whether a write touched any risk input.
// Derived fields are deliberately absent from this list: the risk trigger writes
// them back onto the same record, and that write must not re-trigger a recompute.
func SourceFieldsChanged(before, after *Record) bool {
	if before == nil || after == nil {
		return before != after
	}
	return !shared.SameNumber(before.AttendancePercent, after.AttendancePercent) ||
		!shared.SameNumber(before.CGPA, after.CGPA) ||
		!shared.SameNumber(before.InternalMarksPercent, after.InternalMarksPercent)
}

// RiskPatch is the only write the risk trigger performs.
func RiskPatch(a RiskAssessment) Patch {
	score := a.Score
	level := a.Level
	return Patch{RiskScore: &score, RiskLevel: &level}
}
