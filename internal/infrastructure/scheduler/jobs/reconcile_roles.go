// Package jobs contains the portal's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/campus-portal/portal-core/config"
	"github.com/campus-portal/portal-core/internal/application/command"
	"github.com/campus-portal/portal-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ROLE MIRROR JOB
// Periodically rewrites account role/branch from the authoritative claim sets,
// repairing assignments whose second write failed.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileRolesJobName is the scheduler name of the job.
const ReconcileRolesJobName = "reconcile_role_mirror"

// RoleMirrorReconciler runs one reconciliation pass.
type RoleMirrorReconciler interface {
	Handle(ctx context.Context, cmd command.ReconcileRoleMirrorCommand) (*command.ReconcileRoleMirrorResult, error)
}

// ReconcileRolesConfig configures the job.
type ReconcileRolesConfig struct {
	// BatchSize is the account page size per pass.
	BatchSize int

	// Timeout bounds a single pass.
	Timeout time.Duration
}

// DefaultReconcileRolesConfig returns sensible defaults.
func DefaultReconcileRolesConfig() ReconcileRolesConfig {
	return ReconcileRolesConfig{
		BatchSize: 200,
		Timeout:   5 * time.Minute,
	}
}

// ReconcileRunStats describes the last completed pass.
type ReconcileRunStats struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Scanned     int
	Repaired    int
	Failed      int
	Skipped     bool
}

// ReconcileRolesJob adapts the reconcile command to the scheduler.
type ReconcileRolesJob struct {
	reconciler RoleMirrorReconciler
	features   *config.FeatureFlags
	logger     *logger.Logger
	config     ReconcileRolesConfig

	lastRun atomic.Pointer[ReconcileRunStats]
}

// NewReconcileRolesJob creates the job. features may be nil, in which case
// the job always runs.
func NewReconcileRolesJob(
	reconciler RoleMirrorReconciler,
	features *config.FeatureFlags,
	log *logger.Logger,
	cfg ReconcileRolesConfig,
) *ReconcileRolesJob {
	if log == nil {
		log = logger.Default()
	}
	def := DefaultReconcileRolesConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &ReconcileRolesJob{
		reconciler: reconciler,
		features:   features,
		logger:     log.With(logger.Component("job." + ReconcileRolesJobName)),
		config:     cfg,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileRolesJob) Name() string { return ReconcileRolesJobName }

// Description implements scheduler.Job.
func (j *ReconcileRolesJob) Description() string {
	return "Rebuild account role mirrors from claim sets"
}

// Run implements scheduler.Job. Per-account failures are counted, not
// returned; only a failure to walk the accounts fails the run.
func (j *ReconcileRolesJob) Run(ctx context.Context) error {
	stats := &ReconcileRunStats{RunID: uuid.NewString(), StartedAt: time.Now()}

	if j.features != nil && !j.features.Enabled(config.FeatureRoleReconciler) {
		stats.Skipped = true
		stats.CompletedAt = time.Now()
		j.lastRun.Store(stats)
		j.logger.Debug("role reconciler disabled, skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.reconciler.Handle(ctx, command.ReconcileRoleMirrorCommand{BatchSize: j.config.BatchSize})
	stats.CompletedAt = time.Now()
	if res != nil {
		stats.Scanned, stats.Repaired, stats.Failed = res.Scanned, res.Repaired, res.Failed
	}
	j.lastRun.Store(stats)

	if err != nil {
		return fmt.Errorf("reconcile role mirror: %w", err)
	}

	j.logger.Debug("reconcile pass finished",
		logger.String("run_id", stats.RunID),
		logger.Int("scanned", stats.Scanned),
		logger.Int("repaired", stats.Repaired),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.CompletedAt.Sub(stats.StartedAt)),
	)
	return nil
}

// LastRun returns the stats of the last completed pass, or nil.
func (j *ReconcileRolesJob) LastRun() *ReconcileRunStats {
	return j.lastRun.Load()
}
