package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelfund-backend/internal/domain"
)

var fundColumnNames = []string{
	"id", "beneficiary_id", "balance", "initial_amount", "currency", "state", "expiration_date",
	"renewal_enabled", "last_renewal_at", "next_renewal_at", "renewal_count", "renewal_limit",
	"is_blocked", "block_reason", "block_custom_reason", "reactivation_amount", "blocked_by", "unblocked_by", "unblocked_at",
	"is_deactivated", "deactivation_reason", "deactivation_custom_reason", "preserve_balance", "deactivated_by", "reactivated_by", "reactivated_at",
	"created_at", "updated_at",
}

func addFundRow(rows *sqlmock.Rows, id, balance string, state domain.FundState, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, "ben-1", balance, "500", "USD", string(state), now.AddDate(0, 0, 300),
		true, nil, nil, int32(1), int32(10),
		false, nil, nil, nil, nil, nil, nil,
		false, nil, nil, false, nil, nil, nil,
		now, now,
	)
}

func testFund() *domain.Fund {
	now := time.Now().UTC()
	return &domain.Fund{
		ID:             uuid.NewString(),
		BeneficiaryID:  "ben-1",
		Balance:        decimal.NewFromInt(500),
		InitialAmount:  decimal.NewFromInt(500),
		Currency:       "USD",
		State:          domain.FundStateActive,
		ExpirationDate: now.AddDate(1, 0, 0),
		Renewal:        domain.RenewalInfo{Enabled: true, RenewalLimit: 10},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testMovement(fundID string) *domain.FundMovement {
	return &domain.FundMovement{
		ID:            uuid.NewString(),
		FundID:        fundID,
		Type:          domain.MovementCreation,
		Timestamp:     time.Now().UTC(),
		BalanceBefore: decimal.NewFromInt(500),
		BalanceAfter:  decimal.NewFromInt(500),
		Description:   "Fund created",
		PerformedBy:   "staff-1",
	}
}

func TestFundRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFundRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		fund := testFund()
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO funds").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO fund_movements").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Create(ctx, fund, testMovement(fund.ID))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateBeneficiary", func(t *testing.T) {
		fund := testFund()
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO funds").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := repo.Create(ctx, fund, testMovement(fund.ID))
		assert.ErrorIs(t, err, domain.ErrFundAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFundRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFundRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		now := time.Now().UTC()
		rows := addFundRow(sqlmock.NewRows(fundColumnNames), "f-1", "350", domain.FundStateActive, now)
		mock.ExpectQuery("SELECT (.+) FROM funds WHERE id").
			WithArgs("f-1").
			WillReturnRows(rows)

		fund, err := repo.GetByID(ctx, "f-1")
		require.NoError(t, err)
		assert.Equal(t, "f-1", fund.ID)
		assert.True(t, fund.Balance.Equal(decimal.NewFromInt(350)))
		assert.Equal(t, domain.FundStateActive, fund.State)
		assert.False(t, fund.Block.IsBlocked)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM funds WHERE id").
			WithArgs("f-missing").
			WillReturnRows(sqlmock.NewRows(fundColumnNames))

		_, err := repo.GetByID(ctx, "f-missing")
		assert.ErrorIs(t, err, domain.ErrFundNotFound)
	})
}

func TestFundRepository_UpdateWithMovement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFundRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		fund := testFund()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE funds SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO fund_movements").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.UpdateWithMovement(ctx, fund, testMovement(fund.ID))
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FundGone", func(t *testing.T) {
		fund := testFund()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE funds SET").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.UpdateWithMovement(ctx, fund, testMovement(fund.ID))
		assert.ErrorIs(t, err, domain.ErrFundNotFound)
	})

	t.Run("StateFlipWithoutMovement", func(t *testing.T) {
		fund := testFund()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE funds SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.UpdateWithMovement(ctx, fund, nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFundRepository_ListMovements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewFundRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT count").
		WithArgs("f-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM fund_movements").
		WithArgs("f-1", int32(20), int32(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fund_id", "type", "timestamp", "balance_before", "balance_after", "description", "performed_by", "related_request_id"}).
			AddRow("m-2", "f-1", "USE", now, "500", "350", "Reimbursement", "staff-1", "req-1").
			AddRow("m-1", "f-1", "CREATION", now.Add(-time.Hour), "500", "500", "Fund created", "staff-1", nil))

	movements, total, err := repo.ListMovements(ctx, "f-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(2), total)
	require.Len(t, movements, 2)
	assert.Equal(t, domain.MovementUse, movements[0].Type)
	require.NotNil(t, movements[0].RelatedRequestID)
	assert.Equal(t, "req-1", *movements[0].RelatedRequestID)
	assert.Nil(t, movements[1].RelatedRequestID)
}
