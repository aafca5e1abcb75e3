package command

import (
	"context"
	"fmt"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/metrics"
	"github.com/campus-portal/portal-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ROLE MIRROR COMMAND
// Walks every account and rewrites role/branch from the claim set wherever
// they disagree. Accounts without a stored claim set are left alone.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileRoleMirrorCommand configures one reconciliation pass.
type ReconcileRoleMirrorCommand struct {
	// BatchSize is the page size used to walk accounts.
	BatchSize int
}

// Validate validates the command.
func (c ReconcileRoleMirrorCommand) Validate() error {
	if c.BatchSize < 0 {
		return shared.NewDomainError("account", "ReconcileRoleMirror", shared.ErrInvalidArgument, "batch size must not be negative")
	}
	return nil
}

// ReconcileRoleMirrorResult summarizes a pass.
type ReconcileRoleMirrorResult struct {
	Scanned  int
	Repaired int
	Failed   int
}

// ReconcileRoleMirrorHandler handles ReconcileRoleMirrorCommand.
type ReconcileRoleMirrorHandler struct {
	accounts account.Repository
	claims   account.ClaimsStore
	retrier  *retry.Retrier
	logger   *logger.Logger
	metrics  *metrics.Manager
}

// NewReconcileRoleMirrorHandler creates a new handler.
func NewReconcileRoleMirrorHandler(
	accounts account.Repository,
	claims account.ClaimsStore,
	log *logger.Logger,
	m *metrics.Manager,
) *ReconcileRoleMirrorHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ReconcileRoleMirrorHandler{
		accounts: accounts,
		claims:   claims,
		retrier:  retry.StoreRetrier(defaultRoleWrites, shared.IsRetryable),
		logger:   log.With(logger.String("handler", "reconcile_role_mirror")),
		metrics:  m,
	}
}

// Handle runs one pass. A failure on one account is counted and the pass
// continues; only a failure to list accounts aborts it.
func (h *ReconcileRoleMirrorHandler) Handle(ctx context.Context, cmd ReconcileRoleMirrorCommand) (*ReconcileRoleMirrorResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	batch := cmd.BatchSize
	if batch == 0 {
		batch = 200
	}

	result := &ReconcileRoleMirrorResult{}
	after := ""

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := h.accounts.List(ctx, after, batch)
		if err != nil {
			return result, fmt.Errorf("reconcile_role_mirror: list accounts: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, acc := range page {
			result.Scanned++
			repaired, err := h.reconcile(ctx, acc)
			if err != nil {
				result.Failed++
				h.logger.Error("failed to repair account mirror", logger.AccountID(acc.ID), logger.Err(err))
				continue
			}
			if repaired {
				result.Repaired++
			}
		}

		after = page[len(page)-1].ID
		if len(page) < batch {
			break
		}
	}

	h.metrics.RoleMirrorRepaired(result.Repaired)
	if result.Repaired > 0 || result.Failed > 0 {
		h.logger.Info("role mirror reconciled",
			logger.Int("scanned", result.Scanned),
			logger.Int("repaired", result.Repaired),
			logger.Int("failed", result.Failed),
		)
	}

	return result, nil
}

func (h *ReconcileRoleMirrorHandler) reconcile(ctx context.Context, acc *account.Account) (bool, error) {
	claims, ok, err := h.claims.GetClaims(ctx, acc.ID)
	if err != nil {
		return false, err
	}
	if !ok || acc.MirrorsClaims(claims) {
		return false, nil
	}

	role, _ := claims.Role()
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.accounts.UpdateRole(ctx, acc.ID, role, claims.Branch)
	})
	if err != nil {
		return false, err
	}

	h.logger.Warn("account mirror diverged from claim set",
		logger.AccountID(acc.ID),
		logger.String("stored_role", string(acc.Role)),
		logger.Role(string(role)),
	)
	return true, nil
}
