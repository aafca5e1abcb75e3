package student

import (
	"time"
)

// RiskLevel classifies a risk score.
type RiskLevel string

const (
	RiskHigh     RiskLevel = "High Risk"
	RiskModerate RiskLevel = "Moderate Risk"
	RiskSafe     RiskLevel = "Safe"
)

// IsValid reports whether the level is one of the known values.
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskHigh, RiskModerate, RiskSafe:
		return true
	}
	return false
}

// Internship is a single internship entry. Only the count is scored.
type Internship struct {
	Company string `json:"company,omitempty"`
	Role    string `json:"role,omitempty"`
}

// Record is a student's document keyed by the owning account id.
//
// Numeric source fields are pointers: nil means the field was never written,
// which the formulas treat as 0 but the change guard treats as distinct from 0.
type Record struct {
	ID string `json:"id"`

	Name       string  `json:"name"`
	RollNumber string  `json:"rollNumber"`
	Branch     string  `json:"branch"`
	PhotoURL   *string `json:"photoUrl,omitempty"`

	AttendancePercent    *float64     `json:"attendancePercent,omitempty"`
	CGPA                 *float64     `json:"cgpa,omitempty"`
	InternalMarksPercent *float64     `json:"internalMarksPercent,omitempty"`
	ResumeScore          *float64     `json:"resumeScore,omitempty"`
	Skills               []string     `json:"skills,omitempty"`
	Internships          []Internship `json:"internships,omitempty"`

	RiskScore               *int      `json:"riskScore,omitempty"`
	RiskLevel               RiskLevel `json:"riskLevel,omitempty"`
	PlacementReadinessScore *int      `json:"placementReadinessScore,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so snapshots never alias a live record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.PhotoURL = cloneString(r.PhotoURL)
	c.AttendancePercent = cloneFloat(r.AttendancePercent)
	c.CGPA = cloneFloat(r.CGPA)
	c.InternalMarksPercent = cloneFloat(r.InternalMarksPercent)
	c.ResumeScore = cloneFloat(r.ResumeScore)
	c.RiskScore = cloneInt(r.RiskScore)
	c.PlacementReadinessScore = cloneInt(r.PlacementReadinessScore)
	if r.Skills != nil {
		c.Skills = append([]string(nil), r.Skills...)
	}
	if r.Internships != nil {
		c.Internships = append([]Internship(nil), r.Internships...)
	}
	return &c
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name       *string
	RollNumber *string
	Branch     *string
	PhotoURL   *string

	AttendancePercent    *float64
	CGPA                 *float64
	InternalMarksPercent *float64
	ResumeScore          *float64
	Skills               *[]string
	Internships          *[]Internship

	RiskScore               *int
	RiskLevel               *RiskLevel
	PlacementReadinessScore *int
}

// Field names as stored, used by persistence to write only touched columns.
const (
	FieldName                    = "name"
	FieldRollNumber              = "roll_number"
	FieldBranch                  = "branch"
	FieldPhotoURL                = "photo_url"
	FieldAttendancePercent       = "attendance_percent"
	FieldCGPA                    = "cgpa"
	FieldInternalMarksPercent    = "internal_marks_percent"
	FieldResumeScore             = "resume_score"
	FieldSkills                  = "skills"
	FieldInternships             = "internships"
	FieldRiskScore               = "risk_score"
	FieldRiskLevel               = "risk_level"
	FieldPlacementReadinessScore = "placement_readiness_score"
)

// Fields lists the stored field names the patch touches, in a stable order.
func (p Patch) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(p.Name != nil, FieldName)
	add(p.RollNumber != nil, FieldRollNumber)
	add(p.Branch != nil, FieldBranch)
	add(p.PhotoURL != nil, FieldPhotoURL)
	add(p.AttendancePercent != nil, FieldAttendancePercent)
	add(p.CGPA != nil, FieldCGPA)
	add(p.InternalMarksPercent != nil, FieldInternalMarksPercent)
	add(p.ResumeScore != nil, FieldResumeScore)
	add(p.Skills != nil, FieldSkills)
	add(p.Internships != nil, FieldInternships)
	add(p.RiskScore != nil, FieldRiskScore)
	add(p.RiskLevel != nil, FieldRiskLevel)
	add(p.PlacementReadinessScore != nil, FieldPlacementReadinessScore)
	return f
}

// IsEmpty reports whether the patch touches nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Apply merges the patch into a copy of r and returns it. r is not modified.
func (p Patch) Apply(r *Record, now time.Time) *Record {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.RollNumber != nil {
		out.RollNumber = *p.RollNumber
	}
	if p.Branch != nil {
		out.Branch = *p.Branch
	}
	if p.PhotoURL != nil {
		out.PhotoURL = cloneString(p.PhotoURL)
	}
	if p.AttendancePercent != nil {
		out.AttendancePercent = cloneFloat(p.AttendancePercent)
	}
	if p.CGPA != nil {
		out.CGPA = cloneFloat(p.CGPA)
	}
	if p.InternalMarksPercent != nil {
		out.InternalMarksPercent = cloneFloat(p.InternalMarksPercent)
	}
	if p.ResumeScore != nil {
		out.ResumeScore = cloneFloat(p.ResumeScore)
	}
	if p.Skills != nil {
		out.Skills = append([]string(nil), (*p.Skills)...)
	}
	if p.Internships != nil {
		out.Internships = append([]Internship(nil), (*p.Internships)...)
	}
	if p.RiskScore != nil {
		out.RiskScore = cloneInt(p.RiskScore)
	}
	if p.RiskLevel != nil {
		out.RiskLevel = *p.RiskLevel
	}
	if p.PlacementReadinessScore != nil {
		out.PlacementReadinessScore = cloneInt(p.PlacementReadinessScore)
	}
	out.UpdatedAt = now
	return out
}

// Change is one write to a student record. After is nil when the record was deleted.
type Change struct {
	AccountID string
	Before    *Record
	After     *Record
}

// Deleted reports whether the write removed the record.
func (c Change) Deleted() bool {
	return c.After == nil
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
