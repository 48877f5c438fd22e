package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelfund-backend/internal/config"
	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository/memory"
	"travelfund-backend/internal/service"
)

type noopAudit struct{}

func (noopAudit) Notify(string, map[string]any) {}

func newJobFixture(t *testing.T) (*memory.Store, service.FundService, *JobRunner) {
	t.Helper()
	store := memory.NewStore()
	store.SeedBeneficiary(&domain.Beneficiary{ID: "ben-1"})

	policy := service.FundPolicy{
		DefaultInitialAmount: decimal.NewFromInt(500),
		DefaultPeriodDays:    365,
		RenewalLimit:         10,
		ResponseSLADays:      15,
		LockWait:             time.Second,
	}
	fundSvc := service.NewFundService(store.Funds(), store.Beneficiaries(), noopAudit{}, service.NewFundLocks(time.Second), policy)

	cfg := &config.Config{}
	require.NoError(t, func() error {
		cfg.Server.Port = 8080
		cfg.Database.Host = "localhost"
		cfg.Database.User = "u"
		cfg.Database.Database = "d"
		cfg.Storage.UploadDir = t.TempDir()
		return cfg.Validate()
	}())

	return store, fundSvc, NewJobRunner(store.Funds(), fundSvc, cfg)
}

// rewind moves a stored fund's dates into the past so the sweeps pick it up.
func rewind(t *testing.T, store *memory.Store, fundID string, expiration time.Time, nextRenewal *time.Time) {
	t.Helper()
	ctx := context.Background()
	fund, err := store.GetByID(ctx, fundID)
	require.NoError(t, err)
	fund.ExpirationDate = expiration
	fund.Renewal.NextRenewalAt = nextRenewal
	mv := &domain.FundMovement{
		ID: uuid.NewString(), FundID: fundID, Type: domain.MovementManualAdjust,
		Timestamp: time.Now().UTC(), BalanceBefore: fund.Balance, BalanceAfter: fund.Balance,
		Description: "test fixture", PerformedBy: "test",
	}
	require.NoError(t, store.UpdateWithMovement(ctx, fund, mv))
}

func TestJobRunner_MarkExpiredFunds(t *testing.T) {
	store, fundSvc, runner := newJobFixture(t)
	ctx := context.Background()

	fund, err := fundSvc.CreateFund(ctx, "ben-1", nil, nil, "staff-1")
	require.NoError(t, err)
	rewind(t, store, fund.ID, time.Now().UTC().AddDate(0, 0, -3), nil)

	runner.MarkExpiredFunds()

	swept, err := store.GetByID(ctx, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FundStateExpired, swept.State)

	// A second sweep finds nothing to do and leaves the state alone.
	runner.MarkExpiredFunds()
	swept, err = store.GetByID(ctx, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FundStateExpired, swept.State)
}

func TestJobRunner_MarkExpiredFunds_BlockedFund(t *testing.T) {
	store, fundSvc, runner := newJobFixture(t)
	ctx := context.Background()

	fund, err := fundSvc.CreateFund(ctx, "ben-1", nil, nil, "staff-1")
	require.NoError(t, err)
	_, err = fundSvc.BlockFund(ctx, fund.ID, domain.BlockReasonAdministrative, "", nil, "staff-1")
	require.NoError(t, err)
	rewind(t, store, fund.ID, time.Now().UTC().AddDate(0, 0, -3), nil)

	runner.MarkExpiredFunds()

	swept, err := store.GetByID(ctx, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FundStateBlockedExpired, swept.State)
}

func TestJobRunner_RunScheduledRenewals(t *testing.T) {
	store, fundSvc, runner := newJobFixture(t)
	ctx := context.Background()

	fund, err := fundSvc.CreateFund(ctx, "ben-1", nil, nil, "staff-1")
	require.NoError(t, err)
	_, err = fundSvc.DebitFund(ctx, fund.ID, decimal.NewFromInt(200), "spent", nil, "staff-1")
	require.NoError(t, err)

	due := time.Now().UTC().AddDate(0, 0, -1)
	rewind(t, store, fund.ID, time.Now().UTC().AddDate(0, 0, 30), &due)

	runner.RunScheduledRenewals()

	renewed, err := store.GetByID(ctx, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), renewed.Renewal.RenewalCount)
	assert.True(t, renewed.Balance.Equal(decimal.NewFromInt(500)))
	require.NotNil(t, renewed.Renewal.NextRenewalAt)
	assert.True(t, renewed.Renewal.NextRenewalAt.After(time.Now().UTC()))
}

func TestJobRunner_RenewalLimitSkipped(t *testing.T) {
	store, fundSvc, runner := newJobFixture(t)
	ctx := context.Background()

	fund, err := fundSvc.CreateFund(ctx, "ben-1", nil, nil, "staff-1")
	require.NoError(t, err)

	due := time.Now().UTC().AddDate(0, 0, -1)
	f, err := store.GetByID(ctx, fund.ID)
	require.NoError(t, err)
	f.Renewal.RenewalCount = f.Renewal.RenewalLimit
	f.Renewal.NextRenewalAt = &due
	mv := &domain.FundMovement{
		ID: uuid.NewString(), FundID: fund.ID, Type: domain.MovementManualAdjust,
		Timestamp: time.Now().UTC(), BalanceBefore: f.Balance, BalanceAfter: f.Balance,
		Description: "test fixture", PerformedBy: "test",
	}
	require.NoError(t, store.UpdateWithMovement(ctx, f, mv))

	// Must not panic or renew past the limit.
	runner.RunScheduledRenewals()

	after, err := store.GetByID(ctx, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, after.Renewal.RenewalLimit, after.Renewal.RenewalCount)
}
