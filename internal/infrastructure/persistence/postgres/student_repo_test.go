package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
)

func TestBuildStudentUpdate_WritesOnlyTouchedColumns(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	before := &student.Record{ID: "s1", Name: "Asha", CGPA: shared.Float(7)}
	patch := student.Patch{
		CGPA:        shared.Float(8.5),
		Skills:      &[]string{"Go", "SQL"},
		Internships: &[]student.Internship{{Company: "Acme", Role: "SWE"}},
	}
	after := patch.Apply(before, now)

	query, args, err := buildStudentUpdate("s1", patch, after)
	require.NoError(t, err)

	assert.Equal(t, "UPDATE students SET cgpa = $1, skills = $2, internships = $3, updated_at = $4 WHERE id = $5", query)
	require.Len(t, args, 5)
	assert.Equal(t, 8.5, *args[0].(*float64))
	assert.Equal(t, []string{"Go", "SQL"}, args[1])
	assert.JSONEq(t, `[{"company":"Acme","role":"SWE"}]`, string(args[2].([]byte)))
	assert.Equal(t, now, args[3])
	assert.Equal(t, "s1", args[4])
}

func TestBuildStudentUpdate_DerivedWriteLeavesRiskInputsAlone(t *testing.T) {
	after := student.RiskPatch(student.RiskAssessment{Score: 71, Level: student.RiskModerate}).
		Apply(&student.Record{ID: "s1", AttendancePercent: shared.Float(80)}, time.Now())

	query, args, err := buildStudentUpdate("s1", student.RiskPatch(student.RiskAssessment{Score: 71, Level: student.RiskModerate}), after)
	require.NoError(t, err)

	assert.Equal(t, "UPDATE students SET risk_score = $1, risk_level = $2, updated_at = $3 WHERE id = $4", query)
	assert.NotContains(t, query, "attendance_percent")
	assert.Equal(t, 71, *args[0].(*int))
	assert.Equal(t, "Moderate Risk", *args[1].(*string))
}

func TestBuildStudentUpdate_EmptyPatchTouchesTimestampOnly(t *testing.T) {
	after := student.Patch{}.Apply(&student.Record{ID: "s1"}, time.Now())

	query, args, err := buildStudentUpdate("s1", student.Patch{}, after)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE students SET updated_at = $1 WHERE id = $2", query)
	assert.Len(t, args, 2)
}

func TestBuildStudentUpdate_NilListsStoreEmpty(t *testing.T) {
	patch := student.Patch{Skills: &[]string{}, Internships: &[]student.Internship{}}
	after := patch.Apply(&student.Record{ID: "s1", Skills: []string{"Go"}}, time.Now())
	after.Skills = nil
	after.Internships = nil

	_, args, err := buildStudentUpdate("s1", patch, after)
	require.NoError(t, err)
	assert.Equal(t, []string{}, args[0])

	assert.Equal(t, "[]", string(args[1].([]byte)))
}

func TestColumnValue_UnknownColumn(t *testing.T) {
	_, err := columnValue(&student.Record{}, "password")
	assert.Error(t, err)
}

func TestPoolStats_String(t *testing.T) {
	s := PoolStats{Ping: 1500 * time.Microsecond, Total: 3, Acquired: 1, Idle: 2, Max: 10}
	assert.Equal(t, "ping 2ms, 3/10 conns (1 acquired, 2 idle)", s.String())
}

func TestConnection_ClosedPool(t *testing.T) {
	ctx := context.Background()
	conn := &Connection{}
	conn.closed.Store(true)

	assert.ErrorIs(t, conn.Ping(ctx), ErrPoolClosed)
	_, err := conn.Health(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)
	_, err = conn.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, conn.QueryRow(ctx, "SELECT 1").Scan(), ErrPoolClosed)

	_, err = NewCompanyRepository(conn).FindByName(ctx, "Google")
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.False(t, shared.IsNotFound(err), "a dead pool is not a missing profile")

	err = NewAccountRepository(conn).UpdateRole(ctx, "u1", account.RoleFaculty, "CSE")
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.False(t, shared.IsNotFound(err))

	_, err = NewStudentRepository(conn).Update(ctx, "s1", student.Patch{CGPA: shared.Float(11)})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument, "patch is validated before the database is touched")
}
