package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

type paymentMethodService struct {
	methodRepo      repository.PaymentMethodRepository
	beneficiaryRepo repository.BeneficiaryRepository
	audit           AuditNotifier
}

func NewPaymentMethodService(
	methodRepo repository.PaymentMethodRepository,
	beneficiaryRepo repository.BeneficiaryRepository,
	audit AuditNotifier,
) PaymentMethodService {
	return &paymentMethodService{
		methodRepo:      methodRepo,
		beneficiaryRepo: beneficiaryRepo,
		audit:           audit,
	}
}

func (s *paymentMethodService) CreateMethod(ctx context.Context, beneficiaryID, label string, payout domain.PayoutInfo) (*domain.PaymentMethod, error) {
	exists, err := s.beneficiaryRepo.Exists(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrBeneficiaryNotFound
	}

	now := time.Now().UTC()
	method := &domain.PaymentMethod{
		ID:            uuid.NewString(),
		BeneficiaryID: beneficiaryID,
		Label:         label,
		Payout:        payout,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}

	if err := s.methodRepo.Create(ctx, method); err != nil {
		return nil, err
	}

	s.audit.Notify("payment_method.created", map[string]any{
		"method_id":      method.ID,
		"beneficiary_id": beneficiaryID,
		"type":           method.Payout.Type,
	})
	return method, nil
}

func (s *paymentMethodService) GetMethod(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	return s.methodRepo.GetByID(ctx, id)
}

func (s *paymentMethodService) ListMethods(ctx context.Context, beneficiaryID string) ([]domain.PaymentMethod, error) {
	return s.methodRepo.ListByBeneficiary(ctx, beneficiaryID)
}

func (s *paymentMethodService) DeleteMethod(ctx context.Context, id string) error {
	if err := s.methodRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Notify("payment_method.deleted", map[string]any{"method_id": id})
	return nil
}
