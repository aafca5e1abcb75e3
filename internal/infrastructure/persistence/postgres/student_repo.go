package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `
	id, name, roll_number, branch, photo_url,
	attendance_percent, cgpa, internal_marks_percent, resume_score, skills, internships,
	risk_score, risk_level, placement_readiness_score, created_at, updated_at`

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// Create inserts a new record. Creates do not fire the change trigger.
func (r *StudentRepository) Create(ctx context.Context, s *student.Record) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO students (` + studentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	internships, err := marshalInternships(s.Internships)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = r.conn.Exec(ctx, query,
		s.ID,
		s.Name,
		s.RollNumber,
		s.Branch,
		s.PhotoURL,
		s.AttendancePercent,
		s.CGPA,
		s.InternalMarksPercent,
		s.ResumeScore,
		skillsOrEmpty(s.Skills),
		internships,
		s.RiskScore,
		riskLevelOrNil(s.RiskLevel),
		s.PlacementReadinessScore,
		createdAt,
		now,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("student", "Create", shared.ErrAlreadyExists, "student record already exists")
		}
		if IsCheckViolation(err) {
			return shared.WrapError("student", "Create", shared.ErrInvalidArgument, "student record has out-of-range values", err)
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns the record keyed by account id.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Record, error) {
	return selectStudent(ctx, r.conn, id, false)
}

// Update locks the row, applies the patch and writes back only the touched
// columns. The before and after snapshots come from the same transaction.
// Committing a change to a risk input fires the students_notify_update
// trigger, which ChangeListener picks up.
func (r *StudentRepository) Update(ctx context.Context, id string, patch student.Patch) (student.Change, error) {
	if err := patch.Validate(); err != nil {
		return student.Change{}, err
	}

	var change student.Change
	err := r.conn.InTx(ctx, func(tx pgx.Tx) error {
		before, err := selectStudent(ctx, tx, id, true)
		if err != nil {
			return err
		}

		after := patch.Apply(before, time.Now().UTC())
		query, args, err := buildStudentUpdate(id, patch, after)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			if IsCheckViolation(err) {
				return shared.WrapError("student", "Update", shared.ErrInvalidArgument, "student record has out-of-range values", err)
			}
			return fmt.Errorf("failed to update student: %w", err)
		}

		change = student.Change{AccountID: id, Before: before, After: after}
		return nil
	})
	if err != nil {
		return student.Change{}, err
	}

	return change, nil
}

// buildStudentUpdate renders the UPDATE for the columns patch touches, taking
// their values from after. updated_at is always written and id is the last
// argument.
func buildStudentUpdate(id string, patch student.Patch, after *student.Record) (string, []any, error) {
	fields := patch.Fields()
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, field := range fields {
		v, err := columnValue(after, field)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	args = append(args, after.UpdatedAt)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	return fmt.Sprintf("UPDATE students SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args, nil
}

// Delete removes the record and returns its last state.
func (r *StudentRepository) Delete(ctx context.Context, id string) (student.Change, error) {
	query := `DELETE FROM students WHERE id = $1 RETURNING ` + studentColumns

	before, err := scanStudent(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		return student.Change{}, err
	}

	return student.Change{AccountID: id, Before: before}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func selectStudent(ctx context.Context, q Querier, id string, forUpdate bool) (*student.Record, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanStudent(q.QueryRow(ctx, query, id))
}

func scanStudent(row pgx.Row) (*student.Record, error) {
	var (
		s           student.Record
		skills      []string
		internships []byte
		riskLevel   *string
	)

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.RollNumber,
		&s.Branch,
		&s.PhotoURL,
		&s.AttendancePercent,
		&s.CGPA,
		&s.InternalMarksPercent,
		&s.ResumeScore,
		&skills,
		&internships,
		&s.RiskScore,
		&riskLevel,
		&s.PlacementReadinessScore,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	if len(skills) > 0 {
		s.Skills = skills
	}
	if len(internships) > 0 {
		if err := json.Unmarshal(internships, &s.Internships); err != nil {
			return nil, fmt.Errorf("failed to decode internships: %w", err)
		}
		if len(s.Internships) == 0 {
			s.Internships = nil
		}
	}
	if riskLevel != nil {
		s.RiskLevel = student.RiskLevel(*riskLevel)
	}

	return &s, nil
}

// columnValue returns the value to store for one patched column of after.
func columnValue(after *student.Record, field string) (any, error) {
	switch field {
	case student.FieldName:
		return after.Name, nil
	case student.FieldRollNumber:
		return after.RollNumber, nil
	case student.FieldBranch:
		return after.Branch, nil
	case student.FieldPhotoURL:
		return after.PhotoURL, nil
	case student.FieldAttendancePercent:
		return after.AttendancePercent, nil
	case student.FieldCGPA:
		return after.CGPA, nil
	case student.FieldInternalMarksPercent:
		return after.InternalMarksPercent, nil
	case student.FieldResumeScore:
		return after.ResumeScore, nil
	case student.FieldSkills:
		return skillsOrEmpty(after.Skills), nil
	case student.FieldInternships:
		return marshalInternships(after.Internships)
	case student.FieldRiskScore:
		return after.RiskScore, nil
	case student.FieldRiskLevel:
		return riskLevelOrNil(after.RiskLevel), nil
	case student.FieldPlacementReadinessScore:
		return after.PlacementReadinessScore, nil
	}
	return nil, fmt.Errorf("unknown student column %q", field)
}

func marshalInternships(v []student.Internship) ([]byte, error) {
	if v == nil {
		v = []student.Internship{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal internships: %w", err)
	}
	return b, nil
}

func skillsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func riskLevelOrNil(l student.RiskLevel) *string {
	if l == "" {
		return nil
	}
	s := string(l)
	return &s
}
