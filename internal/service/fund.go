package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
)

// FundPolicy carries the configurable fund defaults.
type FundPolicy struct {
	DefaultInitialAmount decimal.Decimal
	DefaultPeriodDays    int
	RenewalLimit         int32
	ResponseSLADays      int
	LockWait             time.Duration
}

type fundService struct {
	fundRepo        repository.FundRepository
	beneficiaryRepo repository.BeneficiaryRepository
	audit           AuditNotifier
	locks           *FundLocks
	policy          FundPolicy
}

func NewFundService(
	fundRepo repository.FundRepository,
	beneficiaryRepo repository.BeneficiaryRepository,
	audit AuditNotifier,
	locks *FundLocks,
	policy FundPolicy,
) FundService {
	return &fundService{
		fundRepo:        fundRepo,
		beneficiaryRepo: beneficiaryRepo,
		audit:           audit,
		locks:           locks,
		policy:          policy,
	}
}

func (s *fundService) CreateFund(ctx context.Context, beneficiaryID string, amount *decimal.Decimal, periodDays *int, actorID string) (*domain.Fund, error) {
	exists, err := s.beneficiaryRepo.Exists(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrBeneficiaryNotFound
	}

	initial := s.policy.DefaultInitialAmount
	if amount != nil {
		initial = *amount
	}
	if initial.IsNegative() {
		return nil, domain.NewError(domain.CodeValidationError, "initial amount must not be negative")
	}
	period := s.policy.DefaultPeriodDays
	if periodDays != nil {
		period = *periodDays
	}
	if period <= 0 {
		return nil, domain.NewError(domain.CodeValidationError, "period days must be positive")
	}

	now := time.Now().UTC()
	fund := &domain.Fund{
		ID:             uuid.NewString(),
		BeneficiaryID:  beneficiaryID,
		Balance:        initial,
		InitialAmount:  initial,
		Currency:       domain.FundCurrency,
		State:          domain.FundStateActive,
		ExpirationDate: now.AddDate(0, 0, period),
		Renewal: domain.RenewalInfo{
			Enabled:      true,
			RenewalLimit: s.policy.RenewalLimit,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	next := fund.ExpirationDate
	fund.Renewal.NextRenewalAt = &next

	creation := s.newMovement(fund, domain.MovementCreation, initial, initial,
		fmt.Sprintf("Fund created with initial amount %s %s", initial.StringFixed(2), fund.Currency), actorID, nil)

	if err := s.fundRepo.Create(ctx, fund, creation); err != nil {
		return nil, err
	}

	s.audit.Notify("fund.created", auditPayload(fund, actorID))
	return fund, nil
}

func (s *fundService) GetFund(ctx context.Context, fundID string) (*domain.Fund, error) {
	return s.fundRepo.GetByID(ctx, fundID)
}

func (s *fundService) GetFundByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.Fund, error) {
	return s.fundRepo.GetByBeneficiary(ctx, beneficiaryID)
}

func (s *fundService) RenewFund(ctx context.Context, fundID, actorID string) (*domain.Fund, error) {
	return s.mutate(ctx, fundID, "fund.renewed", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		switch fund.State {
		case domain.FundStateActive, domain.FundStateExpired, domain.FundStateBlockedExpired:
		default:
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot renew fund in state %s", fund.State)
		}
		if fund.Renewal.RenewalCount >= fund.Renewal.RenewalLimit {
			return nil, domain.ErrRenewalLimitExceeded
		}

		before := fund.Balance
		fund.Balance = fund.InitialAmount
		fund.ExpirationDate = fund.ExpirationDate.AddDate(1, 0, 0)
		fund.Renewal.RenewalCount++
		fund.Renewal.LastRenewalAt = &now
		next := now.AddDate(1, 0, 0)
		fund.Renewal.NextRenewalAt = &next

		// Renewal collapses the expired flag: EXPIRED -> ACTIVE,
		// BLOCKED_EXPIRED -> BLOCKED. An active block survives renewal.
		switch fund.State {
		case domain.FundStateExpired:
			fund.State = domain.FundStateActive
		case domain.FundStateBlockedExpired:
			fund.State = domain.FundStateBlocked
		}

		return s.newMovement(fund, domain.MovementRenewal, before, fund.Balance,
			fmt.Sprintf("Fund renewed (%d/%d), balance reset to %s", fund.Renewal.RenewalCount, fund.Renewal.RenewalLimit, fund.Balance.StringFixed(2)), actorID, nil), nil
	})
}

func (s *fundService) BlockFund(ctx context.Context, fundID string, reason domain.BlockReason, customReason string, reactivationAmount *decimal.Decimal, actorID string) (*domain.Fund, error) {
	if reason == domain.BlockReasonOther && customReason == "" {
		return nil, domain.NewError(domain.CodeValidationError, "a custom reason is required when the block reason is OTHER")
	}
	return s.mutate(ctx, fundID, "fund.blocked", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		switch fund.State {
		case domain.FundStateActive:
			fund.State = domain.FundStateBlocked
		case domain.FundStateExpired:
			fund.State = domain.FundStateBlockedExpired
		default:
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot block fund in state %s", fund.State)
		}

		fund.Block = domain.BlockInfo{
			IsBlocked:    true,
			Reason:       reason,
			CustomReason: customReason,
			BlockedBy:    actorID,
		}
		if reactivationAmount != nil {
			fund.Block.ReactivationAmount = decimal.NewNullDecimal(*reactivationAmount)
		}

		return s.newMovement(fund, domain.MovementBlock, fund.Balance, fund.Balance,
			fmt.Sprintf("Fund blocked: %s", blockDescription(reason, customReason)), actorID, nil), nil
	})
}

func (s *fundService) UnblockFund(ctx context.Context, fundID, actorID string) (*domain.Fund, error) {
	return s.mutate(ctx, fundID, "fund.unblocked", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		switch fund.State {
		case domain.FundStateBlocked:
			fund.State = domain.FundStateActive
		case domain.FundStateBlockedExpired:
			fund.State = domain.FundStateExpired
		default:
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot unblock fund in state %s", fund.State)
		}

		// Balance is untouched: a block freezes funds, it does not forfeit
		// them.
		fund.Block.IsBlocked = false
		fund.Block.UnblockedBy = actorID
		fund.Block.UnblockedAt = &now

		return s.newMovement(fund, domain.MovementUnblock, fund.Balance, fund.Balance, "Fund unblocked", actorID, nil), nil
	})
}

func (s *fundService) DeactivateFund(ctx context.Context, fundID string, reason domain.DeactivationReason, customReason string, preserveBalance bool, actorID string) (*domain.Fund, error) {
	if reason == domain.DeactivationReasonOther && customReason == "" {
		return nil, domain.NewError(domain.CodeValidationError, "a custom reason is required when the deactivation reason is OTHER")
	}
	return s.mutate(ctx, fundID, "fund.deactivated", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		if fund.State == domain.FundStateDeactivated {
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "fund is already deactivated")
		}

		before := fund.Balance
		if !preserveBalance {
			fund.Balance = decimal.Zero
		}
		fund.State = domain.FundStateDeactivated
		fund.Deactivation = domain.DeactivationInfo{
			IsDeactivated:   true,
			Reason:          reason,
			CustomReason:    customReason,
			PreserveBalance: preserveBalance,
			DeactivatedBy:   actorID,
		}

		return s.newMovement(fund, domain.MovementDeactivation, before, fund.Balance,
			fmt.Sprintf("Fund deactivated (%s), balance %s", reason, balanceNote(preserveBalance)), actorID, nil), nil
	})
}

func (s *fundService) ReactivateFund(ctx context.Context, fundID string, newExpirationDate *time.Time, actorID string) (*domain.Fund, error) {
	return s.mutate(ctx, fundID, "fund.reactivated", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		if fund.State != domain.FundStateDeactivated {
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot reactivate fund in state %s", fund.State)
		}

		fund.State = domain.FundStateActive
		if newExpirationDate != nil {
			fund.ExpirationDate = *newExpirationDate
		} else {
			fund.ExpirationDate = now.AddDate(0, 0, s.policy.DefaultPeriodDays)
		}
		fund.Deactivation.IsDeactivated = false
		fund.Deactivation.ReactivatedBy = actorID
		fund.Deactivation.ReactivatedAt = &now

		// A deactivation that discarded the balance is destructive;
		// reactivation does not restore it.
		return s.newMovement(fund, domain.MovementReactivation, fund.Balance, fund.Balance,
			fmt.Sprintf("Fund reactivated, expires %s", fund.ExpirationDate.Format("2006-01-02")), actorID, nil), nil
	})
}

func (s *fundService) DebitFund(ctx context.Context, fundID string, amount decimal.Decimal, description string, relatedRequestID *string, actorID string) (*domain.Fund, error) {
	if !amount.IsPositive() {
		return nil, domain.NewError(domain.CodeValidationError, "debit amount must be positive")
	}
	return s.mutate(ctx, fundID, "fund.debited", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		if fund.Balance.LessThan(amount) {
			return nil, domain.ErrInsufficientBalance
		}
		before := fund.Balance
		fund.Balance = fund.Balance.Sub(amount)
		return s.newMovement(fund, domain.MovementUse, before, fund.Balance, description, actorID, relatedRequestID), nil
	})
}

func (s *fundService) AdjustBalance(ctx context.Context, fundID string, delta decimal.Decimal, description, actorID string) (*domain.Fund, error) {
	if delta.IsZero() {
		return nil, domain.NewError(domain.CodeValidationError, "adjustment must not be zero")
	}
	if description == "" {
		return nil, domain.NewError(domain.CodeValidationError, "a description is required for manual adjustments")
	}
	return s.mutate(ctx, fundID, "fund.adjusted", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		before := fund.Balance
		after := fund.Balance.Add(delta)
		if after.IsNegative() {
			return nil, domain.ErrInsufficientBalance
		}
		fund.Balance = after
		return s.newMovement(fund, domain.MovementManualAdjust, before, after, description, actorID, nil), nil
	})
}

func (s *fundService) ExpireFund(ctx context.Context, fundID, actorID string) (*domain.Fund, error) {
	return s.mutate(ctx, fundID, "fund.expired", actorID, func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error) {
		if !fund.IsExpired(now) {
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "fund has not reached its expiration date")
		}
		switch fund.State {
		case domain.FundStateActive:
			fund.State = domain.FundStateExpired
		case domain.FundStateBlocked:
			fund.State = domain.FundStateBlockedExpired
		default:
			return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot expire fund in state %s", fund.State)
		}
		// The balance does not move and none of the movement types describes
		// an expiration flip, so the sweep records no ledger entry. The audit
		// event carries the state change.
		return nil, nil
	})
}

func (s *fundService) ListMovements(ctx context.Context, fundID string, page, pageSize int32) ([]domain.FundMovement, int32, error) {
	if _, err := s.fundRepo.GetByID(ctx, fundID); err != nil {
		return nil, 0, err
	}
	return s.fundRepo.ListMovements(ctx, fundID, page, pageSize)
}

// mutate runs one serialized read-modify-write cycle: acquire the per-fund
// lock, load, apply, persist fund + movement atomically, notify audit. An
// apply returning a nil movement persists the fund row alone.
func (s *fundService) mutate(ctx context.Context, fundID, eventType, actorID string, apply func(fund *domain.Fund, now time.Time) (*domain.FundMovement, error)) (*domain.Fund, error) {
	unlock, err := s.locks.acquire(ctx, fundID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	fund, err := s.fundRepo.GetByID(ctx, fundID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	mv, err := apply(fund, now)
	if err != nil {
		return nil, err
	}
	fund.UpdatedAt = now

	if err := s.fundRepo.UpdateWithMovement(ctx, fund, mv); err != nil {
		return nil, err
	}

	s.audit.Notify(eventType, auditPayload(fund, actorID))
	return fund, nil
}

func (s *fundService) newMovement(fund *domain.Fund, mvType domain.MovementType, before, after decimal.Decimal, description, actorID string, relatedRequestID *string) *domain.FundMovement {
	if description == "" {
		description = string(mvType)
	}
	return &domain.FundMovement{
		ID:               uuid.NewString(),
		FundID:           fund.ID,
		Type:             mvType,
		Timestamp:        time.Now().UTC(),
		BalanceBefore:    before,
		BalanceAfter:     after,
		Description:      description,
		PerformedBy:      actorID,
		RelatedRequestID: relatedRequestID,
	}
}

func auditPayload(fund *domain.Fund, actorID string) map[string]any {
	return map[string]any{
		"fund_id":        fund.ID,
		"beneficiary_id": fund.BeneficiaryID,
		"state":          fund.State,
		"balance":        fund.Balance.String(),
		"actor_id":       actorID,
	}
}

func blockDescription(reason domain.BlockReason, customReason string) string {
	if reason == domain.BlockReasonOther {
		return customReason
	}
	return string(reason)
}

func balanceNote(preserved bool) string {
	if preserved {
		return "preserved"
	}
	return "discarded"
}
