package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a domain failure for callers and the HTTP layer.
type ErrorCode string

const (
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeAlreadyExists          ErrorCode = "ALREADY_EXISTS"
	CodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeInsufficientBalance    ErrorCode = "INSUFFICIENT_BALANCE"
	CodeRenewalLimitExceeded   ErrorCode = "RENEWAL_LIMIT_EXCEEDED"
	CodeValidationError        ErrorCode = "VALIDATION_ERROR"
	CodeTransientConflict      ErrorCode = "TRANSIENT_CONFLICT"
)

// DomainError is a typed error carrying a taxonomy code. All service-level
// failures are one of these; callers match with errors.Is against the
// sentinels below or errors.As to read the detail.
type DomainError struct {
	Code   ErrorCode
	Detail string
}

func (e *DomainError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Is lets errors.Is(err, ErrXxx) match any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

// NewError builds a DomainError with a formatted detail message.
func NewError(code ErrorCode, format string, args ...any) error {
	return &DomainError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks.
var (
	ErrFundNotFound           = &DomainError{Code: CodeNotFound, Detail: "fund not found"}
	ErrRequestNotFound        = &DomainError{Code: CodeNotFound, Detail: "reimbursement request not found"}
	ErrPaymentMethodNotFound  = &DomainError{Code: CodeNotFound, Detail: "payment method not found"}
	ErrBeneficiaryNotFound    = &DomainError{Code: CodeNotFound, Detail: "beneficiary not found"}
	ErrFundAlreadyExists      = &DomainError{Code: CodeAlreadyExists, Detail: "beneficiary already has a fund"}
	ErrInvalidStateTransition = &DomainError{Code: CodeInvalidStateTransition, Detail: "operation not allowed from current state"}
	ErrInsufficientBalance    = &DomainError{Code: CodeInsufficientBalance, Detail: "insufficient fund balance"}
	ErrRenewalLimitExceeded   = &DomainError{Code: CodeRenewalLimitExceeded, Detail: "fund renewal limit reached"}
	ErrValidation             = &DomainError{Code: CodeValidationError, Detail: "validation failed"}
	ErrTransientConflict      = &DomainError{Code: CodeTransientConflict, Detail: "resource busy, retry the operation"}
)

// CodeOf extracts the taxonomy code from err, or empty if err is not a
// DomainError.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
