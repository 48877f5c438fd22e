package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

// The Store satisfies FundRepository directly; the other interfaces collide
// on method names, so thin adapters map them onto the shared store.

func (s *Store) Funds() repository.FundRepository { return s }

func (s *Store) Requests() repository.RequestRepository { return requestRepo{s} }

func (s *Store) PaymentMethods() repository.PaymentMethodRepository { return methodRepo{s} }

func (s *Store) Beneficiaries() repository.BeneficiaryRepository { return beneficiaryRepo{s} }

type requestRepo struct{ s *Store }

func (r requestRepo) Create(ctx context.Context, req *domain.ReimbursementRequest) error {
	return r.s.CreateRequest(ctx, req)
}

func (r requestRepo) GetByID(ctx context.Context, id string) (*domain.ReimbursementRequest, error) {
	return r.s.GetRequestByID(ctx, id)
}

func (r requestRepo) Update(ctx context.Context, req *domain.ReimbursementRequest, expected domain.RequestStatus) error {
	return r.s.UpdateRequest(ctx, req, expected)
}

func (r requestRepo) ExistsByNumber(ctx context.Context, requestNumber string) (bool, error) {
	return r.s.ExistsByNumber(ctx, requestNumber)
}

func (r requestRepo) CountByYear(ctx context.Context, year int) (int32, error) {
	return r.s.CountByYear(ctx, year)
}

func (r requestRepo) ListByBeneficiary(ctx context.Context, beneficiaryID string, status string, page, pageSize int32) ([]domain.ReimbursementRequest, int32, error) {
	return r.s.ListByBeneficiary(ctx, beneficiaryID, status, page, pageSize)
}

func (r requestRepo) AddMessage(ctx context.Context, msg *domain.RequestMessage) error {
	return r.s.AddMessage(ctx, msg)
}

func (r requestRepo) ListMessages(ctx context.Context, requestID string) ([]domain.RequestMessage, error) {
	return r.s.ListMessages(ctx, requestID)
}

func (r requestRepo) ApproveWithDebit(ctx context.Context, req *domain.ReimbursementRequest, approvedAmount decimal.Decimal, mv *domain.FundMovement) error {
	return r.s.ApproveWithDebit(ctx, req, approvedAmount, mv)
}

type methodRepo struct{ s *Store }

func (r methodRepo) Create(ctx context.Context, method *domain.PaymentMethod) error {
	return r.s.CreateMethod(ctx, method)
}

func (r methodRepo) GetByID(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	return r.s.GetMethodByID(ctx, id)
}

func (r methodRepo) ListByBeneficiary(ctx context.Context, beneficiaryID string) ([]domain.PaymentMethod, error) {
	return r.s.ListMethodsByBeneficiary(ctx, beneficiaryID)
}

func (r methodRepo) Delete(ctx context.Context, id string) error {
	return r.s.DeleteMethod(ctx, id)
}

type beneficiaryRepo struct{ s *Store }

func (r beneficiaryRepo) GetByID(ctx context.Context, id string) (*domain.Beneficiary, error) {
	return r.s.GetBeneficiaryByID(ctx, id)
}

func (r beneficiaryRepo) Exists(ctx context.Context, id string) (bool, error) {
	return r.s.Exists(ctx, id)
}
