package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
)

// DocumentUpload carries raw receipt bytes from the delivery layer to the
// document store collaborator. Only the stored reference survives.
type DocumentUpload struct {
	FileName    string
	ContentType string
	Contents    []byte
}

type FundService interface {
	CreateFund(ctx context.Context, beneficiaryID string, amount *decimal.Decimal, periodDays *int, actorID string) (*domain.Fund, error)
	GetFund(ctx context.Context, fundID string) (*domain.Fund, error)
	GetFundByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.Fund, error)
	RenewFund(ctx context.Context, fundID, actorID string) (*domain.Fund, error)
	BlockFund(ctx context.Context, fundID string, reason domain.BlockReason, customReason string, reactivationAmount *decimal.Decimal, actorID string) (*domain.Fund, error)
	UnblockFund(ctx context.Context, fundID, actorID string) (*domain.Fund, error)
	DeactivateFund(ctx context.Context, fundID string, reason domain.DeactivationReason, customReason string, preserveBalance bool, actorID string) (*domain.Fund, error)
	ReactivateFund(ctx context.Context, fundID string, newExpirationDate *time.Time, actorID string) (*domain.Fund, error)
	DebitFund(ctx context.Context, fundID string, amount decimal.Decimal, description string, relatedRequestID *string, actorID string) (*domain.Fund, error)
	AdjustBalance(ctx context.Context, fundID string, delta decimal.Decimal, description, actorID string) (*domain.Fund, error)
	ListMovements(ctx context.Context, fundID string, page, pageSize int32) ([]domain.FundMovement, int32, error)
	// ExpireFund flips a fund past its expiration date to the matching
	// expired state. Used by the nightly sweep.
	ExpireFund(ctx context.Context, fundID, actorID string) (*domain.Fund, error)
}

type ReimbursementService interface {
	SubmitRequest(ctx context.Context, beneficiaryID string, amount decimal.Decimal, description string, payout domain.PayoutInfo, documents []DocumentUpload) (*domain.ReimbursementRequest, error)
	GetRequest(ctx context.Context, requestID string) (*domain.ReimbursementRequest, error)
	ListRequests(ctx context.Context, beneficiaryID string, status string, page, pageSize int32) ([]domain.ReimbursementRequest, int32, error)
	MarkInReview(ctx context.Context, requestID, actorID string) (*domain.ReimbursementRequest, error)
	ApproveRequest(ctx context.Context, requestID string, approvedAmount *decimal.Decimal, comments, actorID string) (*domain.ReimbursementRequest, error)
	RejectRequest(ctx context.Context, requestID, reason, comments, actorID string) (*domain.ReimbursementRequest, error)
	MarkInProgress(ctx context.Context, requestID, actorID string) (*domain.ReimbursementRequest, error)
	MarkPaid(ctx context.Context, requestID, paymentReference, actorID string) (*domain.ReimbursementRequest, error)
	AddMessage(ctx context.Context, requestID, authorID string, authorRole domain.AuthorRole, text string) (*domain.RequestMessage, error)
	ListMessages(ctx context.Context, requestID string) ([]domain.RequestMessage, error)
}

type PaymentMethodService interface {
	CreateMethod(ctx context.Context, beneficiaryID, label string, payout domain.PayoutInfo) (*domain.PaymentMethod, error)
	GetMethod(ctx context.Context, id string) (*domain.PaymentMethod, error)
	ListMethods(ctx context.Context, beneficiaryID string) ([]domain.PaymentMethod, error)
	DeleteMethod(ctx context.Context, id string) error
}

// AuditNotifier receives one event after every state-changing operation.
// Delivery is fire-and-forget: implementations must never block the caller
// and their failures are never surfaced.
type AuditNotifier interface {
	Notify(eventType string, payload map[string]any)
}
