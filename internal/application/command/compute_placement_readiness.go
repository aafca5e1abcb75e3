// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE PLACEMENT READINESS COMMAND
// Scores the caller's own record and stores the score on it. The target is
// always the caller; no other id is accepted.
// ══════════════════════════════════════════════════════════════════════════════

// ComputePlacementReadinessCommand carries no input beyond the caller.
type ComputePlacementReadinessCommand struct{}

// ComputePlacementReadinessHandler handles ComputePlacementReadinessCommand.
type ComputePlacementReadinessHandler struct {
	studentRepo student.Repository
	logger      *logger.Logger
	metrics     *metrics.Manager
	now         func() time.Time
}

// NewComputePlacementReadinessHandler creates a new handler.
func NewComputePlacementReadinessHandler(
	studentRepo student.Repository,
	log *logger.Logger,
	m *metrics.Manager,
) *ComputePlacementReadinessHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ComputePlacementReadinessHandler{
		studentRepo: studentRepo,
		logger:      log.With(logger.String("handler", "compute_placement_readiness")),
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle scores the caller's record.
func (h *ComputePlacementReadinessHandler) Handle(ctx context.Context, _ ComputePlacementReadinessCommand) (*student.Readiness, error) {
	caller, ok := account.CallerFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoCaller
	}

	rec, err := h.studentRepo.GetByID(ctx, caller.UID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("compute_placement_readiness: load record: %w", err)
	}

	// Rows written around the repository may hold values the formula
	// cannot score.
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	readiness := student.ComputeReadiness(rec, h.now())

	if _, err := h.studentRepo.Update(ctx, caller.UID, student.ReadinessPatch(readiness.Score)); err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("compute_placement_readiness: store score: %w", err)
	}

	h.metrics.ReadinessScore(readiness.Score)
	h.logger.Debug("placement readiness computed",
		logger.AccountID(caller.UID),
		logger.Score(readiness.Score),
	)

	return &readiness, nil
}
