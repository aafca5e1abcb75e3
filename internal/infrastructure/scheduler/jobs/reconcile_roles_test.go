package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-portal/portal-core/config"
	"github.com/campus-portal/portal-core/internal/application/command"
	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/memory"
	"github.com/campus-portal/portal-core/pkg/logger"
)

type stubReconciler struct {
	calls int
	got   command.ReconcileRoleMirrorCommand
	err   error
}

func (s *stubReconciler) Handle(_ context.Context, cmd command.ReconcileRoleMirrorCommand) (*command.ReconcileRoleMirrorResult, error) {
	s.calls++
	s.got = cmd
	return &command.ReconcileRoleMirrorResult{Scanned: 3}, s.err
}

func TestReconcileRolesJob_RepairsDivergedMirror(t *testing.T) {
	ctx := context.Background()
	accounts := memory.NewAccountRepository()
	claims := memory.NewClaimsStore()

	require.NoError(t, accounts.Create(ctx, &account.Account{ID: "u1", Email: "u1@campus.edu", Role: account.RoleStudent}))
	require.NoError(t, claims.SetClaims(ctx, "u1", account.ClaimsForRole(account.RoleFaculty, "CSE")))

	handler := command.NewReconcileRoleMirrorHandler(accounts, claims, logger.Nop(), nil)
	job := NewReconcileRolesJob(handler, nil, logger.Nop(), ReconcileRolesConfig{})

	require.NoError(t, job.Run(ctx))

	acc, err := accounts.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, account.RoleFaculty, acc.Role)
	assert.Equal(t, "CSE", acc.Branch)

	stats := job.LastRun()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Repaired)
	assert.NotEmpty(t, stats.RunID)
}

func TestReconcileRolesJob_PassesBatchSize(t *testing.T) {
	stub := &stubReconciler{}
	job := NewReconcileRolesJob(stub, nil, logger.Nop(), ReconcileRolesConfig{BatchSize: 25})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 25, stub.got.BatchSize)
	assert.Equal(t, ReconcileRolesJobName, job.Name())
}

func TestReconcileRolesJob_FeatureFlagOff(t *testing.T) {
	flags := config.LoadFeatureFlags()
	require.NoError(t, flags.DisableFeature(config.FeatureRoleReconciler))

	stub := &stubReconciler{}
	job := NewReconcileRolesJob(stub, flags, logger.Nop(), ReconcileRolesConfig{})

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, stub.calls)
	require.NotNil(t, job.LastRun())
	assert.True(t, job.LastRun().Skipped)
}

func TestReconcileRolesJob_ListFailure(t *testing.T) {
	stub := &stubReconciler{err: errors.New("connection reset")}
	job := NewReconcileRolesJob(stub, nil, logger.Nop(), ReconcileRolesConfig{})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 3, job.LastRun().Scanned)
}
