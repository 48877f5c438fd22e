package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	RequestStatusPending           RequestStatus = "PENDING"
	RequestStatusInReview          RequestStatus = "IN_REVIEW"
	RequestStatusApproved          RequestStatus = "APPROVED"
	RequestStatusRejected          RequestStatus = "REJECTED"
	RequestStatusPaymentInProgress RequestStatus = "PAYMENT_IN_PROGRESS"
	RequestStatusPaid              RequestStatus = "PAID"
)

// ResponseDeadlineDays is the informational SLA for staff to respond to a
// submitted request. It is recorded at submission time and not enforced.
const ResponseDeadlineDays = 15

// CanBeReviewed reports whether staff can still approve or reject.
func (s RequestStatus) CanBeReviewed() bool {
	return s == RequestStatusPending || s == RequestStatusInReview
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusRejected || s == RequestStatusPaid
}

type AuthorRole string

const (
	AuthorRoleBeneficiary AuthorRole = "BENEFICIARY"
	AuthorRoleStaff       AuthorRole = "STAFF"
)

// RequestMessage is one entry in the beneficiary/staff communication thread
// attached to a request. The thread is append-only.
type RequestMessage struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"request_id"`
	AuthorID   string     `json:"author_id"`
	AuthorRole AuthorRole `json:"author_role"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RequestDocument is the stored reference to an uploaded receipt. The core
// never holds file contents, only the metadata returned by the document
// store.
type RequestDocument struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ReimbursementRequest is a beneficiary's claim against their fund.
type ReimbursementRequest struct {
	ID               string              `json:"id"`
	RequestNumber    string              `json:"request_number"`
	BeneficiaryID    string              `json:"beneficiary_id"`
	FundID           string              `json:"fund_id"`
	RequestedAmount  decimal.Decimal     `json:"requested_amount"`
	ApprovedAmount   decimal.NullDecimal `json:"approved_amount,omitempty"`
	Description      string              `json:"description"`
	PayoutInfo       PayoutInfo          `json:"payout_info"`
	Status           RequestStatus       `json:"status"`
	RejectionReason  string              `json:"rejection_reason,omitempty"`
	ReviewComments   string              `json:"review_comments,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	ResponseDeadline time.Time           `json:"response_deadline"`
	Documents        []RequestDocument   `json:"documents,omitempty"`
	Messages         []RequestMessage    `json:"messages,omitempty"`
	ReviewedBy       string              `json:"reviewed_by,omitempty"`
	SubmittedAt      time.Time           `json:"submitted_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
