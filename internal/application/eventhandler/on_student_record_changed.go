// Package eventhandler contains the handlers that react to domain events.
package eventhandler

import (
	"context"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON STUDENT RECORD CHANGED HANDLER
// Keeps riskScore and riskLevel in step with attendance, CGPA and internal
// marks. Runs after every write to a student record, including its own.
// ══════════════════════════════════════════════════════════════════════════════

// OnStudentRecordChangedHandler is the risk scorer.
type OnStudentRecordChangedHandler struct {
	studentRepo student.Repository
	logger      *logger.Logger
	metrics     *metrics.Manager
	timeout     time.Duration
}

// RecordChangedConfig configures the handler.
type RecordChangedConfig struct {
	// Timeout bounds the write-back.
	Timeout time.Duration
}

// DefaultRecordChangedConfig returns the default configuration.
func DefaultRecordChangedConfig() RecordChangedConfig {
	return RecordChangedConfig{Timeout: 10 * time.Second}
}

// NewOnStudentRecordChangedHandler creates the risk scorer. The write-back goes
// to studentRepo and comes back as a change of derived fields only, which the
// source-field guard drops.
func NewOnStudentRecordChangedHandler(
	studentRepo student.Repository,
	log *logger.Logger,
	m *metrics.Manager,
	config RecordChangedConfig,
) *OnStudentRecordChangedHandler {
	if log == nil {
		log = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRecordChangedConfig().Timeout
	}

	return &OnStudentRecordChangedHandler{
		studentRepo: studentRepo,
		logger:      log.With(logger.String("handler", "on_student_record_changed")),
		metrics:     m,
		timeout:     config.Timeout,
	}
}

// Handle implements shared.EventHandler.
func (h *OnStudentRecordChangedHandler) Handle(event shared.Event) error {
	change, err := student.ChangeFromEvent(event)
	if err != nil {
		h.logger.Warn("ignoring undecodable record change", logger.EventKind(string(event.EventType())), logger.Err(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	return h.Recompute(ctx, change)
}

// Recompute applies the risk trigger to a single write.
func (h *OnStudentRecordChangedHandler) Recompute(ctx context.Context, change student.Change) error {
	if change.Deleted() {
		h.metrics.RiskTrigger(metrics.RiskSkippedDeleted)
		return nil
	}

	if !student.SourceFieldsChanged(change.Before, change.After) {
		h.metrics.RiskTrigger(metrics.RiskSkippedUnchanged)
		return nil
	}

	assessment, err := student.RiskOf(change.After)
	if err != nil {
		// A stored value the formula cannot score. Writing a score would be a
		// guess, and the record is rescored once the input is corrected.
		h.metrics.RiskTrigger(metrics.RiskSkippedInvalid)
		h.logger.Warn("skipping unscorable record",
			logger.AccountID(change.AccountID),
			logger.Err(err),
		)
		return nil
	}

	if _, err := h.studentRepo.Update(ctx, change.AccountID, student.RiskPatch(assessment)); err != nil {
		if shared.IsNotFound(err) {
			h.metrics.RiskTrigger(metrics.RiskSkippedDeleted)
			return nil
		}
		h.metrics.RiskTrigger(metrics.RiskFailed)
		h.logger.Error("failed to write risk score",
			logger.AccountID(change.AccountID),
			logger.Err(err),
		)
		return err
	}

	h.metrics.RiskTrigger(metrics.RiskWritten)
	h.logger.Info("risk score updated",
		logger.AccountID(change.AccountID),
		logger.Score(assessment.Score),
		logger.String("risk_level", string(assessment.Level)),
	)
	return nil
}
