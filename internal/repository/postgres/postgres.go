package postgres

import (
	"database/sql"

	"travelfund-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.FundRepository
	repository.RequestRepository
	repository.PaymentMethodRepository
	repository.BeneficiaryRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                      db,
		FundRepository:          NewFundRepository(db),
		RequestRepository:       NewRequestRepository(db),
		PaymentMethodRepository: NewPaymentMethodRepository(db),
		BeneficiaryRepository:   NewBeneficiaryRepository(db),
	}
}
