package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPayee() PayeeIdentity {
	return PayeeIdentity{
		FirstName:      "Ana",
		LastName:       "Torres",
		DocumentType:   "PASSPORT",
		DocumentNumber: "X1234567",
		Address:        "Calle 10 #5-21",
		City:           "Bogota",
		Country:        "CO",
		Phone:          "+57 300 000 0000",
	}
}

func TestPayoutInfo_Validate(t *testing.T) {
	t.Run("BankAccountValid", func(t *testing.T) {
		p := PayoutInfo{
			Type:  PayoutBankAccount,
			Payee: validPayee(),
			BankAccount: &BankAccountDetails{
				BankName:      "Bancolombia",
				AccountNumber: "000123456",
				AccountType:   "SAVINGS",
			},
		}
		assert.NoError(t, p.Validate())
	})

	t.Run("MissingVariantDetails", func(t *testing.T) {
		p := PayoutInfo{Type: PayoutBankAccount, Payee: validPayee()}
		err := p.Validate()
		assert.Error(t, err)
		assert.Equal(t, CodeValidationError, CodeOf(err))
	})

	t.Run("UnknownType", func(t *testing.T) {
		p := PayoutInfo{Type: "CASH", Payee: validPayee()}
		assert.Error(t, p.Validate())
	})

	t.Run("IncompletePayee", func(t *testing.T) {
		payee := validPayee()
		payee.DocumentNumber = ""
		p := PayoutInfo{
			Type:   PayoutPayPal,
			Payee:  payee,
			PayPal: &PayPalDetails{Email: "ana@example.com"},
		}
		assert.Error(t, p.Validate())
	})

	t.Run("PayPalBadEmail", func(t *testing.T) {
		p := PayoutInfo{
			Type:   PayoutPayPal,
			Payee:  validPayee(),
			PayPal: &PayPalDetails{Email: "not-an-email"},
		}
		assert.Error(t, p.Validate())
	})

	t.Run("ZelleRequiresPhoneOrEmail", func(t *testing.T) {
		p := PayoutInfo{Type: PayoutZelle, Payee: validPayee(), Zelle: &ZelleDetails{}}
		assert.Error(t, p.Validate())

		p.Zelle = &ZelleDetails{Phone: "+1 555 000 1111"}
		assert.NoError(t, p.Validate())

		p.Zelle = &ZelleDetails{Email: "ana@example.com"}
		assert.NoError(t, p.Validate())
	})

	t.Run("WireValid", func(t *testing.T) {
		p := PayoutInfo{
			Type:  PayoutInternationalWire,
			Payee: validPayee(),
			Wire:  &WireDetails{SwiftCode: "COLOCOBM", BankAddress: "Cra 7 #71-21, Bogota"},
		}
		assert.NoError(t, p.Validate())
	})

	t.Run("OtherNeedsNameAndDetails", func(t *testing.T) {
		p := PayoutInfo{Type: PayoutOther, Payee: validPayee(), Other: &OtherDetails{MethodName: "Cash pickup"}}
		assert.Error(t, p.Validate())

		p.Other.Details = "Western Union office, downtown"
		assert.NoError(t, p.Validate())
	})

	t.Run("SavedMethodSkipsVariantChecks", func(t *testing.T) {
		id := "pm-123"
		p := PayoutInfo{SavedMethodID: &id}
		assert.NoError(t, p.Validate())
	})

	t.Run("EmptySavedMethodID", func(t *testing.T) {
		id := ""
		p := PayoutInfo{SavedMethodID: &id}
		assert.Error(t, p.Validate())
	})
}

func TestPaymentMethod_Validate(t *testing.T) {
	t.Run("CannotReferenceAnotherSavedMethod", func(t *testing.T) {
		id := "pm-999"
		m := PaymentMethod{
			BeneficiaryID: "b-1",
			Label:         "Nested",
			Payout:        PayoutInfo{SavedMethodID: &id},
		}
		assert.Error(t, m.Validate())
	})

	t.Run("InlineDetailsValid", func(t *testing.T) {
		m := PaymentMethod{
			BeneficiaryID: "b-1",
			Label:         "My Wise",
			Payout: PayoutInfo{
				Type:  PayoutWise,
				Payee: validPayee(),
				Wise:  &WiseDetails{Email: "ana@example.com"},
			},
		}
		assert.NoError(t, m.Validate())
	})
}
