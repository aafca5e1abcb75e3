package student

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campus-portal/portal-core/internal/domain/shared"
)

func TestPatchValidate(t *testing.T) {
	level := RiskLevel("Unknown")
	safe := RiskSafe

	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{"empty", Patch{}, false},
		{"in range", Patch{AttendancePercent: shared.Float(100), CGPA: shared.Float(0), InternalMarksPercent: shared.Float(55.5), ResumeScore: shared.Float(80)}, false},
		{"derived fields", Patch{RiskScore: shared.Int(71), RiskLevel: &safe}, false},
		{"NaN attendance", Patch{AttendancePercent: shared.Float(math.NaN())}, true},
		{"infinite internal marks", Patch{InternalMarksPercent: shared.Float(math.Inf(1))}, true},
		{"cgpa above ten", Patch{CGPA: shared.Float(10.5)}, true},
		{"negative resume score", Patch{ResumeScore: shared.Float(-3)}, true},
		{"risk score above hundred", Patch{RiskScore: shared.Int(101)}, true},
		{"unknown risk level", Patch{RiskLevel: &level}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, shared.ErrInvalidArgument)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, (&Record{ID: "u1"}).Validate())
	assert.NoError(t, (&Record{ID: "u1", CGPA: shared.Float(9.2)}).Validate())

	err := (&Record{ID: "u1", CGPA: shared.Float(92)}).Validate()
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.Contains(t, shared.MessageOf(err), "cgpa")
}
