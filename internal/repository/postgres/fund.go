package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

const fundColumns = `id, beneficiary_id, balance, initial_amount, currency, state, expiration_date,
	renewal_enabled, last_renewal_at, next_renewal_at, renewal_count, renewal_limit,
	is_blocked, block_reason, block_custom_reason, reactivation_amount, blocked_by, unblocked_by, unblocked_at,
	is_deactivated, deactivation_reason, deactivation_custom_reason, preserve_balance, deactivated_by, reactivated_by, reactivated_at,
	created_at, updated_at`

type fundRepository struct {
	db *sql.DB
}

func NewFundRepository(db *sql.DB) repository.FundRepository {
	return &fundRepository{db: db}
}

func (r *fundRepository) Create(ctx context.Context, fund *domain.Fund, creation *domain.FundMovement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO funds (` + fundColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`
	_, err = tx.ExecContext(ctx, query, fundArgs(fund)...)
	if err != nil {
		var pqErr *pq.Error
		// unique_violation on beneficiary_id means the fund already exists
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrFundAlreadyExists
		}
		return err
	}

	if err := insertMovement(ctx, tx, creation); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *fundRepository) GetByID(ctx context.Context, id string) (*domain.Fund, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fundColumns+` FROM funds WHERE id = $1`, id)
	return scanFund(row)
}

func (r *fundRepository) GetByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.Fund, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+fundColumns+` FROM funds WHERE beneficiary_id = $1`, beneficiaryID)
	return scanFund(row)
}

func (r *fundRepository) UpdateWithMovement(ctx context.Context, fund *domain.Fund, mv *domain.FundMovement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateFund(ctx, tx, fund); err != nil {
		return err
	}
	if mv != nil {
		if err := insertMovement(ctx, tx, mv); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *fundRepository) ListMovements(ctx context.Context, fundID string, page, pageSize int32) ([]domain.FundMovement, int32, error) {
	var count int32
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM fund_movements WHERE fund_id = $1`, fundID).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	query := `SELECT id, fund_id, type, timestamp, balance_before, balance_after, description, performed_by, related_request_id
	          FROM fund_movements WHERE fund_id = $1 ORDER BY timestamp DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, fundID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []domain.FundMovement
	for rows.Next() {
		var mv domain.FundMovement
		if err := rows.Scan(&mv.ID, &mv.FundID, &mv.Type, &mv.Timestamp, &mv.BalanceBefore, &mv.BalanceAfter, &mv.Description, &mv.PerformedBy, &mv.RelatedRequestID); err != nil {
			return nil, 0, err
		}
		movements = append(movements, mv)
	}
	return movements, count, rows.Err()
}

func (r *fundRepository) ListExpirable(ctx context.Context, cutoff time.Time) ([]domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE state IN ($1, $2) AND expiration_date < $3`
	return r.listFunds(ctx, query, domain.FundStateActive, domain.FundStateBlocked, cutoff)
}

func (r *fundRepository) ListRenewable(ctx context.Context, cutoff time.Time) ([]domain.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE renewal_enabled AND next_renewal_at IS NOT NULL AND next_renewal_at <= $1 AND state IN ($2, $3, $4)`
	return r.listFunds(ctx, query, cutoff, domain.FundStateActive, domain.FundStateExpired, domain.FundStateBlockedExpired)
}

func (r *fundRepository) listFunds(ctx context.Context, query string, args ...any) ([]domain.Fund, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []domain.Fund
	for rows.Next() {
		fund, err := scanFundRow(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, *fund)
	}
	return funds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFund(row *sql.Row) (*domain.Fund, error) {
	fund, err := scanFundRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFundNotFound
	}
	return fund, err
}

func scanFundRow(row rowScanner) (*domain.Fund, error) {
	var f domain.Fund
	var blockReason, blockCustom, blockedBy, unblockedBy sql.NullString
	var deactReason, deactCustom, deactivatedBy, reactivatedBy sql.NullString
	err := row.Scan(
		&f.ID, &f.BeneficiaryID, &f.Balance, &f.InitialAmount, &f.Currency, &f.State, &f.ExpirationDate,
		&f.Renewal.Enabled, &f.Renewal.LastRenewalAt, &f.Renewal.NextRenewalAt, &f.Renewal.RenewalCount, &f.Renewal.RenewalLimit,
		&f.Block.IsBlocked, &blockReason, &blockCustom, &f.Block.ReactivationAmount, &blockedBy, &unblockedBy, &f.Block.UnblockedAt,
		&f.Deactivation.IsDeactivated, &deactReason, &deactCustom, &f.Deactivation.PreserveBalance, &deactivatedBy, &reactivatedBy, &f.Deactivation.ReactivatedAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Block.Reason = domain.BlockReason(blockReason.String)
	f.Block.CustomReason = blockCustom.String
	f.Block.BlockedBy = blockedBy.String
	f.Block.UnblockedBy = unblockedBy.String
	f.Deactivation.Reason = domain.DeactivationReason(deactReason.String)
	f.Deactivation.CustomReason = deactCustom.String
	f.Deactivation.DeactivatedBy = deactivatedBy.String
	f.Deactivation.ReactivatedBy = reactivatedBy.String
	return &f, nil
}

func fundArgs(f *domain.Fund) []any {
	return []any{
		f.ID, f.BeneficiaryID, f.Balance, f.InitialAmount, f.Currency, f.State, f.ExpirationDate,
		f.Renewal.Enabled, f.Renewal.LastRenewalAt, f.Renewal.NextRenewalAt, f.Renewal.RenewalCount, f.Renewal.RenewalLimit,
		f.Block.IsBlocked, nullString(string(f.Block.Reason)), nullString(f.Block.CustomReason), f.Block.ReactivationAmount, nullString(f.Block.BlockedBy), nullString(f.Block.UnblockedBy), f.Block.UnblockedAt,
		f.Deactivation.IsDeactivated, nullString(string(f.Deactivation.Reason)), nullString(f.Deactivation.CustomReason), f.Deactivation.PreserveBalance, nullString(f.Deactivation.DeactivatedBy), nullString(f.Deactivation.ReactivatedBy), f.Deactivation.ReactivatedAt,
		f.CreatedAt, f.UpdatedAt,
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateFund(ctx context.Context, tx execer, f *domain.Fund) error {
	query := `UPDATE funds SET
		balance = $2, initial_amount = $3, state = $4, expiration_date = $5,
		renewal_enabled = $6, last_renewal_at = $7, next_renewal_at = $8, renewal_count = $9, renewal_limit = $10,
		is_blocked = $11, block_reason = $12, block_custom_reason = $13, reactivation_amount = $14, blocked_by = $15, unblocked_by = $16, unblocked_at = $17,
		is_deactivated = $18, deactivation_reason = $19, deactivation_custom_reason = $20, preserve_balance = $21, deactivated_by = $22, reactivated_by = $23, reactivated_at = $24,
		updated_at = $25
	WHERE id = $1`
	res, err := tx.ExecContext(ctx, query,
		f.ID, f.Balance, f.InitialAmount, f.State, f.ExpirationDate,
		f.Renewal.Enabled, f.Renewal.LastRenewalAt, f.Renewal.NextRenewalAt, f.Renewal.RenewalCount, f.Renewal.RenewalLimit,
		f.Block.IsBlocked, nullString(string(f.Block.Reason)), nullString(f.Block.CustomReason), f.Block.ReactivationAmount, nullString(f.Block.BlockedBy), nullString(f.Block.UnblockedBy), f.Block.UnblockedAt,
		f.Deactivation.IsDeactivated, nullString(string(f.Deactivation.Reason)), nullString(f.Deactivation.CustomReason), f.Deactivation.PreserveBalance, nullString(f.Deactivation.DeactivatedBy), nullString(f.Deactivation.ReactivatedBy), f.Deactivation.ReactivatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrFundNotFound
	}
	return nil
}

func insertMovement(ctx context.Context, tx execer, mv *domain.FundMovement) error {
	query := `INSERT INTO fund_movements (id, fund_id, type, timestamp, balance_before, balance_after, description, performed_by, related_request_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := tx.ExecContext(ctx, query, mv.ID, mv.FundID, mv.Type, mv.Timestamp, mv.BalanceBefore, mv.BalanceAfter, mv.Description, mv.PerformedBy, mv.RelatedRequestID)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
