package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FundState string

const (
	FundStateActive         FundState = "ACTIVE"
	FundStateBlocked        FundState = "BLOCKED"
	FundStateExpired        FundState = "EXPIRED"
	FundStateBlockedExpired FundState = "BLOCKED_EXPIRED"
	FundStateDeactivated    FundState = "DEACTIVATED"
)

type BlockReason string

const (
	BlockReasonPolicyViolation      BlockReason = "POLICY_VIOLATION"
	BlockReasonSuspiciousActivity   BlockReason = "SUSPICIOUS_ACTIVITY"
	BlockReasonMissingDocumentation BlockReason = "MISSING_DOCUMENTATION"
	BlockReasonAdministrative       BlockReason = "ADMINISTRATIVE"
	BlockReasonOther                BlockReason = "OTHER"
)

type DeactivationReason string

const (
	DeactivationReasonProgramExit     DeactivationReason = "PROGRAM_EXIT"
	DeactivationReasonPolicyViolation DeactivationReason = "POLICY_VIOLATION"
	DeactivationReasonFraud           DeactivationReason = "FRAUD"
	DeactivationReasonDuplicate       DeactivationReason = "DUPLICATE"
	DeactivationReasonOther           DeactivationReason = "OTHER"
)

const (
	// DefaultRenewalLimit caps how many times a fund can be renewed.
	DefaultRenewalLimit = 10
	FundCurrency        = "USD"
)

// RenewalInfo tracks the annual renewal cycle of a fund.
type RenewalInfo struct {
	Enabled       bool       `json:"enabled"`
	LastRenewalAt *time.Time `json:"last_renewal_at,omitempty"`
	NextRenewalAt *time.Time `json:"next_renewal_at,omitempty"`
	RenewalCount  int32      `json:"renewal_count"`
	RenewalLimit  int32      `json:"renewal_limit"`
}

// BlockInfo records the current block, if any. Unblock fields keep the last
// unblock on record for the audit trail.
type BlockInfo struct {
	IsBlocked          bool                `json:"is_blocked"`
	Reason             BlockReason         `json:"reason,omitempty"`
	CustomReason       string              `json:"custom_reason,omitempty"`
	ReactivationAmount decimal.NullDecimal `json:"reactivation_amount,omitempty"`
	BlockedBy          string              `json:"blocked_by,omitempty"`
	UnblockedBy        string              `json:"unblocked_by,omitempty"`
	UnblockedAt        *time.Time          `json:"unblocked_at,omitempty"`
}

// DeactivationInfo records the terminal soft-delete state of a fund.
type DeactivationInfo struct {
	IsDeactivated   bool               `json:"is_deactivated"`
	Reason          DeactivationReason `json:"reason,omitempty"`
	CustomReason    string             `json:"custom_reason,omitempty"`
	PreserveBalance bool               `json:"preserve_balance"`
	DeactivatedBy   string             `json:"deactivated_by,omitempty"`
	ReactivatedBy   string             `json:"reactivated_by,omitempty"`
	ReactivatedAt   *time.Time         `json:"reactivated_at,omitempty"`
}

// Fund is the per-beneficiary monetary balance reimbursements draw against.
// Exactly one fund exists per beneficiary; it is never physically deleted.
type Fund struct {
	ID             string           `json:"id"`
	BeneficiaryID  string           `json:"beneficiary_id"`
	Balance        decimal.Decimal  `json:"balance"`
	InitialAmount  decimal.Decimal  `json:"initial_amount"`
	Currency       string           `json:"currency"`
	State          FundState        `json:"state"`
	ExpirationDate time.Time        `json:"expiration_date"`
	Renewal        RenewalInfo      `json:"renewal"`
	Block          BlockInfo        `json:"block"`
	Deactivation   DeactivationInfo `json:"deactivation"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsExpired reports whether the expiration date has passed, regardless of
// whether the expiration sweep has flipped the state yet.
func (f *Fund) IsExpired(now time.Time) bool {
	return now.After(f.ExpirationDate)
}

// DaysRemaining returns whole days until expiration, never negative.
func (f *Fund) DaysRemaining(now time.Time) int {
	d := int(f.ExpirationDate.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func (f *Fund) CanRenew() bool {
	switch f.State {
	case FundStateActive, FundStateExpired, FundStateBlockedExpired:
		return f.Renewal.RenewalCount < f.Renewal.RenewalLimit
	default:
		return false
	}
}

func (f *Fund) CanUnblock() bool {
	return f.State == FundStateBlocked || f.State == FundStateBlockedExpired
}

func (f *Fund) CanDeactivate() bool {
	return f.State != FundStateDeactivated
}

func (f *Fund) CanReactivate() bool {
	return f.State == FundStateDeactivated
}

// IsBlockedState reports whether the fund is in either blocked node of the
// state graph.
func (f *Fund) IsBlockedState() bool {
	return f.State == FundStateBlocked || f.State == FundStateBlockedExpired
}

type MovementType string

const (
	MovementCreation     MovementType = "CREATION"
	MovementRenewal      MovementType = "RENEWAL"
	MovementBlock        MovementType = "BLOCK"
	MovementUnblock      MovementType = "UNBLOCK"
	MovementUse          MovementType = "USE"
	MovementManualAdjust MovementType = "MANUAL_ADJUST"
	MovementDeactivation MovementType = "DEACTIVATION"
	MovementReactivation MovementType = "REACTIVATION"
)

// FundMovement is one immutable entry in a fund's append-only history. The
// log is only ever appended to, never updated in place.
type FundMovement struct {
	ID               string          `json:"id"`
	FundID           string          `json:"fund_id"`
	Type             MovementType    `json:"type"`
	Timestamp        time.Time       `json:"timestamp"`
	BalanceBefore    decimal.Decimal `json:"balance_before"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Description      string          `json:"description"`
	PerformedBy      string          `json:"performed_by"`
	RelatedRequestID *string         `json:"related_request_id,omitempty"`
}
