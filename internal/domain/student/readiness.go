package student

import (
	"time"

	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// ReadinessLevel classifies a placement readiness score.
type ReadinessLevel string

const (
	ReadinessExcellent        ReadinessLevel = "Excellent"
	ReadinessGood             ReadinessLevel = "Good"
	ReadinessNeedsImprovement ReadinessLevel = "Needs Improvement"
)

const (
	readinessResumeWeight     = 0.35
	readinessCGPAWeight       = 0.25
	readinessSkillWeight      = 0.25
	readinessInternshipWeight = 0.15

	// Skills are scored against this many; more than that scores above 100.
	skillsForFullScore = 8
	// Internships are scored against this many and capped at 100.
	internshipsForFullScore = 3

	readinessExcellentAbove = 80
	readinessGoodAbove      = 60
)

// Readiness is the outcome of a placement readiness computation.
type Readiness struct {
	Score      int            `json:"score"`
	Level      ReadinessLevel `json:"level"`
	ComputedAt time.Time      `json:"computedAt"`
}

// ComputeReadinessScore returns the rounded placement readiness score of r.
// Skills are counted as a set. The skill component is not capped.
func ComputeReadinessScore(r *Record) int {
	cgpaPercent := shared.ValueOr(r.CGPA) * 10
	skillCount := shared.NewStringSet(r.Skills).Len()
	skillScore := float64(skillCount) / skillsForFullScore * 100

	internshipScore := float64(len(r.Internships)) / internshipsForFullScore * 100
	if internshipScore > 100 {
		internshipScore = 100
	}

	raw := readinessResumeWeight*shared.ValueOr(r.ResumeScore) +
		readinessCGPAWeight*cgpaPercent +
		readinessSkillWeight*skillScore +
		readinessInternshipWeight*internshipScore

	return shared.RoundHalfUp(raw)
}

// ComputeReadiness scores r and classifies the result.
func ComputeReadiness(r *Record, now time.Time) Readiness {
	score := ComputeReadinessScore(r)
	return Readiness{Score: score, Level: ReadinessLevelFor(score), ComputedAt: now}
}

// ReadinessLevelFor classifies a stored readiness score. Only the score is
// persisted, so every reader derives the level through this function.
// Both thresholds are exclusive: 80 is Good and 60 is Needs Improvement.
func ReadinessLevelFor(score int) ReadinessLevel {
	switch {
	case score > readinessExcellentAbove:
		return ReadinessExcellent
	case score > readinessGoodAbove:
		return ReadinessGood
	default:
		return ReadinessNeedsImprovement
	}
}

// ReadinessPatch is the only write the readiness command performs.
func ReadinessPatch(score int) Patch {
	return Patch{PlacementReadinessScore: &score}
}
