package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY DIGITAL ID QUERY
// Checks a presented credential identifier against the live record. The
// identifier is only an encoding, so the record is the only thing trusted.
// ══════════════════════════════════════════════════════════════════════════════

// maxIDHashCandidates bounds the record lookups one identifier can cause.
const maxIDHashCandidates = 8

// VerifyDigitalIDQuery carries the presented identifier.
type VerifyDigitalIDQuery struct {
	IDHash string `json:"idHash"`
}

// Validate validates the query.
func (q VerifyDigitalIDQuery) Validate() error {
	if strings.TrimSpace(q.IDHash) == "" {
		return shared.NewDomainError("student", "VerifyDigitalID", shared.ErrInvalidArgument, "idHash is required")
	}
	return nil
}

// VerifyDigitalIDResult reports whether the identifier names a live record.
// Credential is the current credential of that record when Valid.
type VerifyDigitalIDResult struct {
	Valid      bool               `json:"valid"`
	Credential *student.DigitalID `json:"credential,omitempty"`
}

// VerifyDigitalIDHandler handles VerifyDigitalIDQuery.
type VerifyDigitalIDHandler struct {
	studentRepo student.Repository
	validUntil  string
}

// NewVerifyDigitalIDHandler creates a new handler.
func NewVerifyDigitalIDHandler(studentRepo student.Repository, validUntil string) *VerifyDigitalIDHandler {
	if validUntil == "" {
		validUntil = student.DefaultCredentialValidUntil
	}
	return &VerifyDigitalIDHandler{studentRepo: studentRepo, validUntil: validUntil}
}

// Handle verifies the identifier. Only faculty and admins may verify.
func (h *VerifyDigitalIDHandler) Handle(ctx context.Context, q VerifyDigitalIDQuery) (*VerifyDigitalIDResult, error) {
	caller, ok := account.CallerFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoCaller
	}
	if !caller.Claims.Admin && !caller.Claims.Faculty {
		return nil, shared.NewDomainError("student", "VerifyDigitalID", shared.ErrPermissionDenied, "only faculty or admins can verify credentials")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	candidates, err := student.DecodeIDHash(q.IDHash)
	if err != nil {
		return nil, err
	}
	if len(candidates) > maxIDHashCandidates {
		candidates = candidates[:maxIDHashCandidates]
	}

	for _, c := range candidates {
		rec, err := h.studentRepo.GetByID(ctx, c.AccountID)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("verify_digital_id: load record: %w", err)
		}
		if rec.RollNumber != c.RollNumber {
			continue
		}

		credential := student.NewDigitalID(rec, h.validUntil)
		return &VerifyDigitalIDResult{Valid: true, Credential: &credential}, nil
	}

	return &VerifyDigitalIDResult{Valid: false}, nil
}
