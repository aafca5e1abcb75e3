package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/shared"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/metrics"
	"github.com/campus-portal/portal-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SET USER ROLE COMMAND
// Rewrites a target's claim set and mirrors the role onto their account.
// The claim set is the source of truth; the account fields are a mirror that
// ReconcileRoleMirrorHandler repairs if the second write never lands.
// ══════════════════════════════════════════════════════════════════════════════

// Role assignment outcomes, as recorded in metrics.
const (
	RoleAssigned     = "assigned"
	RoleClaimsFailed = "claims_failed"
	RoleMirrorFailed = "mirror_failed"
	RoleRejected     = "rejected"
)

const defaultRoleWrites = 3

// SetUserRoleCommand contains the assignment request.
type SetUserRoleCommand struct {
	TargetUID string `json:"targetUid"`
	Role      string `json:"role"`
	Branch    string `json:"branch"`
}

// Validate validates the command.
func (c SetUserRoleCommand) Validate() error {
	if strings.TrimSpace(c.TargetUID) == "" {
		return shared.NewDomainError("account", "SetUserRole", shared.ErrInvalidArgument, "targetUid is required")
	}
	if _, ok := account.ParseRole(c.Role); !ok {
		return shared.ErrInvalidRole
	}
	return nil
}

// SetUserRoleResult is returned only after both writes succeeded.
type SetUserRoleResult struct {
	Success bool `json:"success"`
}

// SetUserRoleConfig configures the handler.
type SetUserRoleConfig struct {
	// WriteAttempts is the number of attempts per store write.
	WriteAttempts int
}

// SetUserRoleHandler handles SetUserRoleCommand.
type SetUserRoleHandler struct {
	accounts  account.Repository
	claims    account.ClaimsStore
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	logger    *logger.Logger
	metrics   *metrics.Manager
}

// NewSetUserRoleHandler creates a new handler. publisher may be nil.
func NewSetUserRoleHandler(
	accounts account.Repository,
	claims account.ClaimsStore,
	publisher shared.EventPublisher,
	log *logger.Logger,
	m *metrics.Manager,
	config SetUserRoleConfig,
) *SetUserRoleHandler {
	if log == nil {
		log = logger.Default()
	}
	if config.WriteAttempts <= 0 {
		config.WriteAttempts = defaultRoleWrites
	}

	h := &SetUserRoleHandler{
		accounts:  accounts,
		claims:    claims,
		publisher: publisher,
		logger:    log.With(logger.String("handler", "set_user_role")),
		metrics:   m,
	}
	h.retrier = retry.New(
		retry.WithMaxAttempts(config.WriteAttempts),
		retry.WithInitialDelay(50*time.Millisecond),
		retry.WithMaxDelay(time.Second),
		retry.WithJitter(0.05),
		retry.WithRetryIf(shared.IsRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			h.logger.Warn("retrying role write",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	return h
}

// Handle executes the assignment. Both writes are full overwrites, so a
// caller that saw an error can repeat the same command safely.
func (h *SetUserRoleHandler) Handle(ctx context.Context, cmd SetUserRoleCommand) (*SetUserRoleResult, error) {
	caller, ok := account.CallerFromContext(ctx)
	if !ok {
		return nil, shared.ErrNoCaller
	}
	if !caller.IsAdmin() {
		h.metrics.RoleAssignment(RoleRejected)
		return nil, shared.ErrAdminRequired
	}
	if err := cmd.Validate(); err != nil {
		h.metrics.RoleAssignment(RoleRejected)
		return nil, err
	}

	role, _ := account.ParseRole(cmd.Role)
	claims := account.ClaimsForRole(role, cmd.Branch)
	log := h.logger.With(
		logger.AccountID(cmd.TargetUID),
		logger.Role(string(role)),
		logger.String("assigned_by", caller.UID),
	)

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.claims.SetClaims(ctx, cmd.TargetUID, claims)
	})
	if err != nil {
		h.metrics.RoleAssignment(RoleClaimsFailed)
		log.Error("failed to write claim set", logger.Err(err))
		return nil, h.wrap("SetClaims", err)
	}

	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		return h.accounts.UpdateRole(ctx, cmd.TargetUID, role, cmd.Branch)
	})
	if err != nil {
		h.metrics.RoleAssignment(RoleMirrorFailed)
		log.Error("claim set written but account mirror failed", logger.Err(err))
		return nil, h.wrap("UpdateRole", err)
	}

	h.metrics.RoleAssignment(RoleAssigned)
	log.Info("role assigned")

	if h.publisher != nil {
		if err := h.publisher.Publish(account.NewRoleAssignedEvent(cmd.TargetUID, caller.UID, role, claims)); err != nil {
			log.Warn("failed to publish role assignment", logger.Err(err))
		}
	}

	return &SetUserRoleResult{Success: true}, nil
}

// wrap keeps domain categories intact and labels everything else internal.
func (h *SetUserRoleHandler) wrap(op string, err error) error {
	if shared.CodeOf(err) != shared.CodeInternal {
		return err
	}
	return fmt.Errorf("set_user_role: %s: %w", op, err)
}
