package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

type paymentMethodRepository struct {
	db *sql.DB
}

func NewPaymentMethodRepository(db *sql.DB) repository.PaymentMethodRepository {
	return &paymentMethodRepository{db: db}
}

func (r *paymentMethodRepository) Create(ctx context.Context, method *domain.PaymentMethod) error {
	payout, err := json.Marshal(method.Payout)
	if err != nil {
		return err
	}
	query := `INSERT INTO payment_methods (id, beneficiary_id, label, payout, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(ctx, query, method.ID, method.BeneficiaryID, method.Label, payout, method.CreatedAt, method.UpdatedAt)
	return err
}

func (r *paymentMethodRepository) GetByID(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, beneficiary_id, label, payout, created_at, updated_at FROM payment_methods WHERE id = $1`, id)
	method, err := scanPaymentMethod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentMethodNotFound
	}
	return method, err
}

func (r *paymentMethodRepository) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]domain.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, beneficiary_id, label, payout, created_at, updated_at FROM payment_methods WHERE beneficiary_id = $1 ORDER BY created_at`, beneficiaryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		method, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, *method)
	}
	return methods, rows.Err()
}

func (r *paymentMethodRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPaymentMethodNotFound
	}
	return nil
}

func scanPaymentMethod(row rowScanner) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	var payout []byte
	if err := row.Scan(&m.ID, &m.BeneficiaryID, &m.Label, &payout, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payout, &m.Payout); err != nil {
		return nil, err
	}
	return &m, nil
}
