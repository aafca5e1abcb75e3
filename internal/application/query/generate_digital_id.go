package query

import (
	"context"
	"fmt"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE DIGITAL ID QUERY
// Builds the caller's own ID credential from their record.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateDigitalIDQuery carries no input beyond the caller.
type GenerateDigitalIDQuery struct{}

// GenerateDigitalIDHandler handles GenerateDigitalIDQuery.
type GenerateDigitalIDHandler struct {
	studentRepo student.Repository
	validUntil  string
}

// NewGenerateDigitalIDHandler creates a new handler. An empty validUntil
// uses student.DefaultCredentialValidUntil.
func NewGenerateDigitalIDHandler(studentRepo student.Repository, validUntil string) *GenerateDigitalIDHandler {
	if validUntil == "" {
		validUntil = student.DefaultCredentialValidUntil
	}
	return &GenerateDigitalIDHandler{studentRepo: studentRepo, validUntil: validUntil}
}

// Handle builds the credential.
func (h *GenerateDigitalIDHandler) Handle(ctx context.Context, _ GenerateDigitalIDQuery) (*student.DigitalID, error) {
	caller, ok := account.CallerFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoCaller
	}

	rec, err := h.studentRepo.GetByID(ctx, caller.UID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("generate_digital_id: load record: %w", err)
	}

	id := student.NewDigitalID(rec, h.validUntil)
	return &id, nil
}
