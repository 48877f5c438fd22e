package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
)

type FundRepository interface {
	Create(ctx context.Context, fund *domain.Fund, creation *domain.FundMovement) error
	GetByID(ctx context.Context, id string) (*domain.Fund, error)
	GetByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.Fund, error)
	// UpdateWithMovement persists the fund row and appends one movement entry
	// in a single transaction. No partial effect on error. A nil movement
	// persists the fund row alone, for state flips that produce no ledger
	// entry.
	UpdateWithMovement(ctx context.Context, fund *domain.Fund, mv *domain.FundMovement) error
	ListMovements(ctx context.Context, fundID string, page, pageSize int32) ([]domain.FundMovement, int32, error)
	// ListExpirable returns funds in ACTIVE or BLOCKED whose expiration date
	// is before the cutoff; used by the nightly sweep.
	ListExpirable(ctx context.Context, cutoff time.Time) ([]domain.Fund, error)
	// ListRenewable returns funds with renewal enabled whose next renewal is
	// due at or before the cutoff.
	ListRenewable(ctx context.Context, cutoff time.Time) ([]domain.Fund, error)
}

type RequestRepository interface {
	Create(ctx context.Context, req *domain.ReimbursementRequest) error
	GetByID(ctx context.Context, id string) (*domain.ReimbursementRequest, error)
	// Update persists the request only if its stored status still equals
	// expected (compare-and-swap). A request that moved on concurrently is
	// left untouched and ErrInvalidStateTransition is returned, so a stale
	// reject can never overwrite a committed approval.
	Update(ctx context.Context, req *domain.ReimbursementRequest, expected domain.RequestStatus) error
	ExistsByNumber(ctx context.Context, requestNumber string) (bool, error)
	CountByYear(ctx context.Context, year int) (int32, error)
	ListByBeneficiary(ctx context.Context, beneficiaryID string, status string, page, pageSize int32) ([]domain.ReimbursementRequest, int32, error)
	AddMessage(ctx context.Context, msg *domain.RequestMessage) error
	ListMessages(ctx context.Context, requestID string) ([]domain.RequestMessage, error)
	// ApproveWithDebit flips the request to APPROVED and debits the fund as
	// one atomic unit: the fund row is locked, the balance check re-run, the
	// movement appended and the request updated in the same transaction. The
	// request's status is re-verified inside the transaction; a request that
	// is no longer reviewable fails with ErrInvalidStateTransition and
	// nothing is debited. Returns domain.ErrInsufficientBalance with no
	// effect if the balance no longer covers the approved amount.
	ApproveWithDebit(ctx context.Context, req *domain.ReimbursementRequest, approvedAmount decimal.Decimal, mv *domain.FundMovement) error
}

type PaymentMethodRepository interface {
	Create(ctx context.Context, method *domain.PaymentMethod) error
	GetByID(ctx context.Context, id string) (*domain.PaymentMethod, error)
	ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]domain.PaymentMethod, error)
	Delete(ctx context.Context, id string) error
}

type BeneficiaryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Beneficiary, error)
	Exists(ctx context.Context, id string) (bool, error)
}
