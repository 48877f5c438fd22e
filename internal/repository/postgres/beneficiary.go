package postgres

import (
	"context"
	"database/sql"
	"errors"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

type beneficiaryRepository struct {
	db *sql.DB
}

func NewBeneficiaryRepository(db *sql.DB) repository.BeneficiaryRepository {
	return &beneficiaryRepository{db: db}
}

func (r *beneficiaryRepository) GetByID(ctx context.Context, id string) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, created_at FROM beneficiaries WHERE id = $1`, id).
		Scan(&b.ID, &b.FullName, &b.Email, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBeneficiaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *beneficiaryRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM beneficiaries WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
