package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/logger"
	"travelfund-backend/internal/repository"
	"travelfund-backend/internal/storage"
)

// requestNumberAttempts bounds the sequential candidate loop before the
// timestamp fallback kicks in.
const requestNumberAttempts = 5

type reimbursementService struct {
	requestRepo     repository.RequestRepository
	fundRepo        repository.FundRepository
	methodRepo      repository.PaymentMethodRepository
	beneficiaryRepo repository.BeneficiaryRepository
	docStore        storage.DocumentStore
	audit           AuditNotifier
	locks           *FundLocks
	policy          FundPolicy
}

func NewReimbursementService(
	requestRepo repository.RequestRepository,
	fundRepo repository.FundRepository,
	methodRepo repository.PaymentMethodRepository,
	beneficiaryRepo repository.BeneficiaryRepository,
	docStore storage.DocumentStore,
	audit AuditNotifier,
	locks *FundLocks,
	policy FundPolicy,
) ReimbursementService {
	return &reimbursementService{
		requestRepo:     requestRepo,
		fundRepo:        fundRepo,
		methodRepo:      methodRepo,
		beneficiaryRepo: beneficiaryRepo,
		docStore:        docStore,
		audit:           audit,
		locks:           locks,
		policy:          policy,
	}
}

func (s *reimbursementService) SubmitRequest(ctx context.Context, beneficiaryID string, amount decimal.Decimal, description string, payout domain.PayoutInfo, documents []DocumentUpload) (*domain.ReimbursementRequest, error) {
	if !amount.IsPositive() {
		return nil, domain.NewError(domain.CodeValidationError, "requested amount must be positive")
	}

	fund, err := s.fundRepo.GetByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	if fund.State != domain.FundStateActive {
		return nil, domain.NewError(domain.CodeInvalidStateTransition, "fund is not active (state %s)", fund.State)
	}
	if fund.Balance.LessThan(amount) {
		return nil, domain.ErrInsufficientBalance
	}

	if err := payout.Validate(); err != nil {
		return nil, err
	}
	if payout.SavedMethodID != nil {
		method, err := s.methodRepo.GetByID(ctx, *payout.SavedMethodID)
		if err != nil {
			return nil, err
		}
		if method.BeneficiaryID != beneficiaryID {
			return nil, domain.NewError(domain.CodeValidationError, "saved payment method belongs to another beneficiary")
		}
	}

	now := time.Now().UTC()
	requestID := uuid.NewString()

	number, err := s.generateRequestNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	req := &domain.ReimbursementRequest{
		ID:               requestID,
		RequestNumber:    number,
		BeneficiaryID:    beneficiaryID,
		FundID:           fund.ID,
		RequestedAmount:  amount,
		Description:      description,
		PayoutInfo:       payout,
		Status:           domain.RequestStatusPending,
		ResponseDeadline: now.AddDate(0, 0, s.policy.ResponseSLADays),
		SubmittedAt:      now,
		UpdatedAt:        now,
	}

	var storedKeys []string
	for _, doc := range documents {
		key := fmt.Sprintf("requests/%s/%s", requestID, doc.FileName)
		url, err := s.docStore.Store(ctx, key, doc.Contents)
		if err != nil {
			s.removeStoredDocuments(ctx, storedKeys)
			return nil, fmt.Errorf("failed to store document %s: %w", doc.FileName, err)
		}
		storedKeys = append(storedKeys, key)
		req.Documents = append(req.Documents, domain.RequestDocument{
			ID:         uuid.NewString(),
			RequestID:  requestID,
			FileName:   doc.FileName,
			FileURL:    url,
			SizeBytes:  int64(len(doc.Contents)),
			UploadedAt: now,
		})
	}

	// Two concurrent submissions can race to the same sequential number; the
	// loser retries with a timestamp number.
	for attempt := 0; ; attempt++ {
		err := s.requestRepo.Create(ctx, req)
		if err == nil {
			break
		}
		if domain.CodeOf(err) != domain.CodeAlreadyExists || attempt >= requestNumberAttempts {
			s.removeStoredDocuments(ctx, storedKeys)
			return nil, err
		}
		req.RequestNumber = fmt.Sprintf("REM-%d-%d", now.Year(), time.Now().UnixNano())
	}

	s.audit.Notify("request.submitted", requestAuditPayload(req, beneficiaryID))
	return req, nil
}

// removeStoredDocuments deletes already-uploaded files after a failed
// submission so they do not sit in the store with no request row pointing at
// them. Best effort; a failed delete is logged, not surfaced.
func (s *reimbursementService) removeStoredDocuments(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.docStore.Delete(ctx, key); err != nil {
			logger.Warn("failed to remove document after submission failure", "key", key, "error", err)
		}
	}
}

// generateRequestNumber tries sequential REM-<year>-<seq> candidates and
// falls back to a timestamp suffix when every candidate is taken. The
// fallback is part of the contract, not an optimization: nanosecond
// resolution makes it unique even under concurrent submission.
func (s *reimbursementService) generateRequestNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	count, err := s.requestRepo.CountByYear(ctx, year)
	if err != nil {
		return "", err
	}

	for attempt := int32(0); attempt < requestNumberAttempts; attempt++ {
		candidate := fmt.Sprintf("REM-%d-%04d", year, count+1+attempt)
		taken, err := s.requestRepo.ExistsByNumber(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	fallback := fmt.Sprintf("REM-%d-%d", year, now.UnixNano())
	logger.Warn("request number sequence exhausted, using timestamp fallback", "request_number", fallback)
	return fallback, nil
}

func (s *reimbursementService) GetRequest(ctx context.Context, requestID string) (*domain.ReimbursementRequest, error) {
	return s.requestRepo.GetByID(ctx, requestID)
}

func (s *reimbursementService) ListRequests(ctx context.Context, beneficiaryID string, status string, page, pageSize int32) ([]domain.ReimbursementRequest, int32, error) {
	return s.requestRepo.ListByBeneficiary(ctx, beneficiaryID, status, page, pageSize)
}

func (s *reimbursementService) MarkInReview(ctx context.Context, requestID, actorID string) (*domain.ReimbursementRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestStatusPending {
		return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot move request from %s to IN_REVIEW", req.Status)
	}

	req.Status = domain.RequestStatusInReview
	req.ReviewedBy = actorID
	req.UpdatedAt = time.Now().UTC()
	if err := s.requestRepo.Update(ctx, req, domain.RequestStatusPending); err != nil {
		return nil, err
	}

	s.audit.Notify("request.in_review", requestAuditPayload(req, actorID))
	return req, nil
}

// ApproveRequest debits the fund and flips the request state as one atomic
// unit. On any failure the request stays in its prior state and the balance
// is untouched.
func (s *reimbursementService) ApproveRequest(ctx context.Context, requestID string, approvedAmount *decimal.Decimal, comments, actorID string) (*domain.ReimbursementRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// Fast-path check only; ApproveWithDebit re-verifies the status inside
	// its transaction so a concurrent approval cannot debit twice.
	if !req.Status.CanBeReviewed() {
		return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot approve request in state %s", req.Status)
	}

	amount := req.RequestedAmount
	if approvedAmount != nil {
		amount = *approvedAmount
	}
	if !amount.IsPositive() {
		return nil, domain.NewError(domain.CodeValidationError, "approved amount must be positive")
	}

	unlock, err := s.locks.acquire(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := time.Now().UTC()
	req.ReviewComments = comments
	req.ReviewedBy = actorID
	req.UpdatedAt = now

	mv := &domain.FundMovement{
		ID:               uuid.NewString(),
		FundID:           req.FundID,
		Type:             domain.MovementUse,
		Timestamp:        now,
		Description:      fmt.Sprintf("Reimbursement %s approved for %s %s", req.RequestNumber, amount.StringFixed(2), domain.FundCurrency),
		PerformedBy:      actorID,
		RelatedRequestID: &req.ID,
	}
	if err := s.requestRepo.ApproveWithDebit(ctx, req, amount, mv); err != nil {
		return nil, err
	}

	req.Status = domain.RequestStatusApproved
	req.ApprovedAmount = decimal.NewNullDecimal(amount)

	s.audit.Notify("request.approved", requestAuditPayload(req, actorID))
	return req, nil
}

func (s *reimbursementService) RejectRequest(ctx context.Context, requestID, reason, comments, actorID string) (*domain.ReimbursementRequest, error) {
	if reason == "" {
		return nil, domain.NewError(domain.CodeValidationError, "a rejection reason is required")
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanBeReviewed() {
		return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot reject request in state %s", req.Status)
	}

	// The update is conditional on the status just read; a reject racing an
	// approval loses rather than overwriting the committed debit.
	prev := req.Status
	req.Status = domain.RequestStatusRejected
	req.RejectionReason = reason
	req.ReviewComments = comments
	req.ReviewedBy = actorID
	req.UpdatedAt = time.Now().UTC()
	if err := s.requestRepo.Update(ctx, req, prev); err != nil {
		return nil, err
	}

	s.audit.Notify("request.rejected", requestAuditPayload(req, actorID))
	return req, nil
}

func (s *reimbursementService) MarkInProgress(ctx context.Context, requestID, actorID string) (*domain.ReimbursementRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestStatusApproved {
		return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot start payment for request in state %s", req.Status)
	}

	req.Status = domain.RequestStatusPaymentInProgress
	req.UpdatedAt = time.Now().UTC()
	if err := s.requestRepo.Update(ctx, req, domain.RequestStatusApproved); err != nil {
		return nil, err
	}

	s.audit.Notify("request.payment_in_progress", requestAuditPayload(req, actorID))
	return req, nil
}

func (s *reimbursementService) MarkPaid(ctx context.Context, requestID, paymentReference, actorID string) (*domain.ReimbursementRequest, error) {
	if paymentReference == "" {
		return nil, domain.NewError(domain.CodeValidationError, "a payment reference is required")
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.RequestStatusPaymentInProgress {
		return nil, domain.NewError(domain.CodeInvalidStateTransition, "cannot mark request paid from state %s", req.Status)
	}

	// The debit already happened at approval; paying is a bookkeeping step.
	req.Status = domain.RequestStatusPaid
	req.PaymentReference = paymentReference
	req.UpdatedAt = time.Now().UTC()
	if err := s.requestRepo.Update(ctx, req, domain.RequestStatusPaymentInProgress); err != nil {
		return nil, err
	}

	s.audit.Notify("request.paid", requestAuditPayload(req, actorID))
	return req, nil
}

func (s *reimbursementService) AddMessage(ctx context.Context, requestID, authorID string, authorRole domain.AuthorRole, text string) (*domain.RequestMessage, error) {
	if text == "" {
		return nil, domain.NewError(domain.CodeValidationError, "message text must not be empty")
	}
	if authorRole != domain.AuthorRoleBeneficiary && authorRole != domain.AuthorRoleStaff {
		return nil, domain.NewError(domain.CodeValidationError, "unknown author role %q", authorRole)
	}

	if _, err := s.requestRepo.GetByID(ctx, requestID); err != nil {
		return nil, err
	}

	msg := &domain.RequestMessage{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		AuthorID:   authorID,
		AuthorRole: authorRole,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.requestRepo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *reimbursementService) ListMessages(ctx context.Context, requestID string) ([]domain.RequestMessage, error) {
	if _, err := s.requestRepo.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.requestRepo.ListMessages(ctx, requestID)
}

func requestAuditPayload(req *domain.ReimbursementRequest, actorID string) map[string]any {
	return map[string]any{
		"request_id":     req.ID,
		"request_number": req.RequestNumber,
		"beneficiary_id": req.BeneficiaryID,
		"fund_id":        req.FundID,
		"status":         req.Status,
		"actor_id":       actorID,
	}
}
