package company

import (
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// SkillGap is the result of matching a student's skills against a profile.
type SkillGap struct {
	MatchPercentage int      `json:"matchPercentage"`
	MissingSkills   []string `json:"missingSkills"`
	CommonSkills    []string `json:"commonSkills"`
}

// AnalyzeGap diffs studentSkills against required.
//
// Both lists are treated as sets, so duplicates never double count.
// Common skills keep the student's order and missing skills keep the
// required order. An empty requirement set is fully matched (100).
func AnalyzeGap(studentSkills, required []string) SkillGap {
	have := shared.NewStringSet(studentSkills)
	need := shared.NewStringSet(required)

	gap := SkillGap{
		MissingSkills: []string{},
		CommonSkills:  []string{},
	}

	if need.Len() == 0 {
		gap.MatchPercentage = 100
		return gap
	}

	for _, s := range have.Values() {
		if need.Contains(s) {
			gap.CommonSkills = append(gap.CommonSkills, s)
		}
	}
	for _, s := range need.Values() {
		if !have.Contains(s) {
			gap.MissingSkills = append(gap.MissingSkills, s)
		}
	}

	gap.MatchPercentage = shared.RoundHalfUp(float64(len(gap.CommonSkills)) / float64(need.Len()) * 100)
	return gap
}
