// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYZE SKILL GAP QUERY
// Diffs the caller's skills against a company's required skills. Read-only.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyzeSkillGapQuery names the company to compare against.
type AnalyzeSkillGapQuery struct {
	CompanyName string `json:"companyName"`
}

// Validate validates the query. The name itself is matched exactly.
func (q AnalyzeSkillGapQuery) Validate() error {
	if strings.TrimSpace(q.CompanyName) == "" {
		return shared.NewDomainError("company", "AnalyzeSkillGap", shared.ErrInvalidArgument, "companyName is required")
	}
	return nil
}

// AnalyzeSkillGapHandler handles AnalyzeSkillGapQuery.
type AnalyzeSkillGapHandler struct {
	studentRepo student.Repository
	companyRepo company.Repository
}

// NewAnalyzeSkillGapHandler creates a new handler.
func NewAnalyzeSkillGapHandler(studentRepo student.Repository, companyRepo company.Repository) *AnalyzeSkillGapHandler {
	return &AnalyzeSkillGapHandler{
		studentRepo: studentRepo,
		companyRepo: companyRepo,
	}
}

// Handle runs the analysis. A missing caller is reported as an invalid
// argument, the same as a missing company name.
func (h *AnalyzeSkillGapHandler) Handle(ctx context.Context, q AnalyzeSkillGapQuery) (*company.SkillGap, error) {
	caller, ok := account.CallerFromContext(ctx)
	if !ok {
		return nil, shared.NewDomainError("company", "AnalyzeSkillGap", shared.ErrInvalidArgument, "caller identity and companyName are required")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		rec     *student.Record
		profile *company.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := h.studentRepo.GetByID(gctx, caller.UID)
		if err != nil {
			return notFoundOr(err, shared.ErrStudentNotFound, "load student record")
		}
		rec = r
		return nil
	})
	g.Go(func() error {
		p, err := h.companyRepo.FindByName(gctx, q.CompanyName)
		if err != nil {
			return notFoundOr(err, shared.ErrCompanyNotFound, "load company profile")
		}
		profile = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	gap := company.AnalyzeGap(rec.Skills, profile.RequiredSkills)
	return &gap, nil
}

func notFoundOr(err, notFound error, what string) error {
	if shared.IsNotFound(err) {
		return notFound
	}
	return fmt.Errorf("analyze_skill_gap: %s: %w", what, err)
}
