package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type PayoutMethodType string

const (
	PayoutBankAccount       PayoutMethodType = "BANK_ACCOUNT"
	PayoutPayPal            PayoutMethodType = "PAYPAL"
	PayoutInternationalWire PayoutMethodType = "INTERNATIONAL_WIRE"
	PayoutZelle             PayoutMethodType = "ZELLE"
	PayoutWise              PayoutMethodType = "WISE"
	PayoutOther             PayoutMethodType = "OTHER"
)

var validate = validator.New()

// PayeeIdentity is required on every payout regardless of variant.
type PayeeIdentity struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	DocumentType   string `json:"document_type" validate:"required"`
	DocumentNumber string `json:"document_number" validate:"required"`
	Address        string `json:"address" validate:"required"`
	City           string `json:"city" validate:"required"`
	Country        string `json:"country" validate:"required"`
	Phone          string `json:"phone" validate:"required"`
}

type BankAccountDetails struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	AccountType   string `json:"account_type" validate:"required"`
}

type PayPalDetails struct {
	Email string `json:"email" validate:"required,email"`
}

type WireDetails struct {
	SwiftCode   string `json:"swift_code" validate:"required"`
	BankAddress string `json:"bank_address" validate:"required"`
}

// ZelleDetails needs at least one of phone or email; that rule lives in
// Validate because it spans two fields.
type ZelleDetails struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type WiseDetails struct {
	Email string `json:"email" validate:"required,email"`
}

type OtherDetails struct {
	MethodName string `json:"method_name" validate:"required"`
	Details    string `json:"details" validate:"required"`
}

// PayoutInfo is a closed tagged variant: exactly one details struct matching
// Type must be set. A request may instead reference a saved vault entry via
// SavedMethodID, in which case per-variant validation is skipped (the stored
// record was validated when it was created).
type PayoutInfo struct {
	SavedMethodID *string             `json:"saved_method_id,omitempty"`
	Type          PayoutMethodType    `json:"type,omitempty"`
	Payee         PayeeIdentity       `json:"payee"`
	BankAccount   *BankAccountDetails `json:"bank_account,omitempty"`
	PayPal        *PayPalDetails      `json:"paypal,omitempty"`
	Wire          *WireDetails        `json:"international_wire,omitempty"`
	Zelle         *ZelleDetails       `json:"zelle,omitempty"`
	Wise          *WiseDetails        `json:"wise,omitempty"`
	Other         *OtherDetails       `json:"other,omitempty"`
}

// Validate enforces the per-variant required-field rules plus the payee
// identity. Callers that pass a SavedMethodID get only the reference check.
func (p *PayoutInfo) Validate() error {
	if p.SavedMethodID != nil {
		if *p.SavedMethodID == "" {
			return NewError(CodeValidationError, "saved_method_id must not be empty")
		}
		return nil
	}

	if err := validate.Struct(&p.Payee); err != nil {
		return NewError(CodeValidationError, "payee identity: %v", err)
	}

	switch p.Type {
	case PayoutBankAccount:
		if p.BankAccount == nil {
			return NewError(CodeValidationError, "bank_account details are required")
		}
		if err := validate.Struct(p.BankAccount); err != nil {
			return NewError(CodeValidationError, "bank_account: %v", err)
		}
	case PayoutPayPal:
		if p.PayPal == nil {
			return NewError(CodeValidationError, "paypal details are required")
		}
		if err := validate.Struct(p.PayPal); err != nil {
			return NewError(CodeValidationError, "paypal: %v", err)
		}
	case PayoutInternationalWire:
		if p.Wire == nil {
			return NewError(CodeValidationError, "international_wire details are required")
		}
		if err := validate.Struct(p.Wire); err != nil {
			return NewError(CodeValidationError, "international_wire: %v", err)
		}
	case PayoutZelle:
		if p.Zelle == nil {
			return NewError(CodeValidationError, "zelle details are required")
		}
		if p.Zelle.Phone == "" && p.Zelle.Email == "" {
			return NewError(CodeValidationError, "zelle requires a phone or an email")
		}
		if err := validate.Struct(p.Zelle); err != nil {
			return NewError(CodeValidationError, "zelle: %v", err)
		}
	case PayoutWise:
		if p.Wise == nil {
			return NewError(CodeValidationError, "wise details are required")
		}
		if err := validate.Struct(p.Wise); err != nil {
			return NewError(CodeValidationError, "wise: %v", err)
		}
	case PayoutOther:
		if p.Other == nil {
			return NewError(CodeValidationError, "other details are required")
		}
		if err := validate.Struct(p.Other); err != nil {
			return NewError(CodeValidationError, "other: %v", err)
		}
	default:
		return NewError(CodeValidationError, "unknown payout method type %q", p.Type)
	}

	return nil
}

// PaymentMethod is a reusable payout destination stored in the vault,
// independent of any single request.
type PaymentMethod struct {
	ID            string     `json:"id"`
	BeneficiaryID string     `json:"beneficiary_id"`
	Label         string     `json:"label"`
	Payout        PayoutInfo `json:"payout"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Validate checks a vault entry at creation time. Vault entries always carry
// inline details; they cannot reference another saved method.
func (m *PaymentMethod) Validate() error {
	if m.Payout.SavedMethodID != nil {
		return NewError(CodeValidationError, "a stored payment method cannot reference another saved method")
	}
	return m.Payout.Validate()
}
