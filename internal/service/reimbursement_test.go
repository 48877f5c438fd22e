package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/repository"
	"travelfund-backend/internal/repository/memory"
)

type fakeDocStore struct{}

func (fakeDocStore) Store(ctx context.Context, key string, contents []byte) (string, error) {
	return "http://files.local/documents/" + key, nil
}

func (fakeDocStore) Delete(ctx context.Context, key string) error { return nil }

// recordingDocStore tracks stored and deleted keys so cleanup behavior can be
// asserted.
type recordingDocStore struct {
	mu      sync.Mutex
	stored  []string
	deleted []string
}

func (d *recordingDocStore) Store(ctx context.Context, key string, contents []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stored = append(d.stored, key)
	return "http://files.local/documents/" + key, nil
}

func (d *recordingDocStore) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, key)
	return nil
}

// failingCreateRepo makes every insert fail while delegating everything else.
type failingCreateRepo struct {
	repository.RequestRepository
}

func (failingCreateRepo) Create(ctx context.Context, req *domain.ReimbursementRequest) error {
	return errors.New("insert failed")
}

type reimbursementFixture struct {
	store   *memory.Store
	fundSvc FundService
	svc     ReimbursementService
	audit   *recordingAudit
	fund    *domain.Fund
}

func newReimbursementFixture(t *testing.T) *reimbursementFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedBeneficiary(&domain.Beneficiary{ID: "ben-1", FullName: "Ana Torres"})
	audit := &recordingAudit{}
	locks := NewFundLocks(time.Second)
	policy := testPolicy()

	fundSvc := NewFundService(store.Funds(), store.Beneficiaries(), audit, locks, policy)
	svc := NewReimbursementService(store.Requests(), store.Funds(), store.PaymentMethods(), store.Beneficiaries(), fakeDocStore{}, audit, locks, policy)

	fund, err := fundSvc.CreateFund(ctx, "ben-1", nil, nil, "staff-1")
	require.NoError(t, err)

	return &reimbursementFixture{store: store, fundSvc: fundSvc, svc: svc, audit: audit, fund: fund}
}

func bankPayout() domain.PayoutInfo {
	return domain.PayoutInfo{
		Type: domain.PayoutBankAccount,
		Payee: domain.PayeeIdentity{
			FirstName: "Ana", LastName: "Torres",
			DocumentType: "PASSPORT", DocumentNumber: "X1234567",
			Address: "Calle 10 #5-21", City: "Bogota", Country: "CO", Phone: "+57 300 000 0000",
		},
		BankAccount: &domain.BankAccountDetails{
			BankName: "Bancolombia", AccountNumber: "000123456", AccountType: "SAVINGS",
		},
	}
}

func TestReimbursementService_SubmitRequest(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		docs := []DocumentUpload{{FileName: "receipt.pdf", ContentType: "application/pdf", Contents: []byte("pdf-bytes")}}
		req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(120), "Hotel, 2 nights", bankPayout(), docs)
		require.NoError(t, err)

		assert.Equal(t, domain.RequestStatusPending, req.Status)
		assert.Equal(t, fmt.Sprintf("REM-%d-0001", time.Now().UTC().Year()), req.RequestNumber)
		assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 15), req.ResponseDeadline, time.Minute)
		require.Len(t, req.Documents, 1)
		assert.Equal(t, "receipt.pdf", req.Documents[0].FileName)
		assert.Contains(t, req.Documents[0].FileURL, req.ID)
		assert.True(t, f.audit.has("request.submitted"))

		// Submission reserves nothing; the debit happens at approval.
		fund, err := f.fundSvc.GetFund(ctx, f.fund.ID)
		require.NoError(t, err)
		assert.True(t, fund.Balance.Equal(decimal.NewFromInt(500)))
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		_, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.Zero, "nothing", bankPayout(), nil)
		assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))
	})

	t.Run("ExceedsBalance", func(t *testing.T) {
		_, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(600), "too much", bankPayout(), nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	})

	t.Run("InvalidPayout", func(t *testing.T) {
		payout := bankPayout()
		payout.BankAccount = nil
		_, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(50), "bad payout", payout, nil)
		assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))
	})

	t.Run("NoFund", func(t *testing.T) {
		_, err := f.svc.SubmitRequest(ctx, "ben-unknown", decimal.NewFromInt(50), "no fund", bankPayout(), nil)
		assert.ErrorIs(t, err, domain.ErrFundNotFound)
	})

	t.Run("BlockedFundRejected", func(t *testing.T) {
		_, err := f.fundSvc.BlockFund(ctx, f.fund.ID, domain.BlockReasonAdministrative, "", nil, "staff-1")
		require.NoError(t, err)
		defer func() {
			_, err := f.fundSvc.UnblockFund(ctx, f.fund.ID, "staff-1")
			require.NoError(t, err)
		}()

		_, err = f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(50), "while blocked", bankPayout(), nil)
		assert.Equal(t, domain.CodeInvalidStateTransition, domain.CodeOf(err))
	})
}

func TestReimbursementService_SavedPaymentMethod(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	methodSvc := NewPaymentMethodService(f.store.PaymentMethods(), f.store.Beneficiaries(), f.audit)
	method, err := methodSvc.CreateMethod(ctx, "ben-1", "My bank", bankPayout())
	require.NoError(t, err)

	t.Run("ReferenceAccepted", func(t *testing.T) {
		req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(40), "taxi", domain.PayoutInfo{SavedMethodID: &method.ID}, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, req.Status)
	})

	t.Run("ForeignMethodRejected", func(t *testing.T) {
		f.store.SeedBeneficiary(&domain.Beneficiary{ID: "ben-2"})
		other, err := methodSvc.CreateMethod(ctx, "ben-2", "Not yours", bankPayout())
		require.NoError(t, err)

		_, err = f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(40), "taxi", domain.PayoutInfo{SavedMethodID: &other.ID}, nil)
		assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))
	})

	t.Run("UnknownMethodRejected", func(t *testing.T) {
		missing := "pm-missing"
		_, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(40), "taxi", domain.PayoutInfo{SavedMethodID: &missing}, nil)
		assert.ErrorIs(t, err, domain.ErrPaymentMethodNotFound)
	})
}

func TestReimbursementService_ReviewFlow(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	submit := func(amount int64) *domain.ReimbursementRequest {
		req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(amount), "expense", bankPayout(), nil)
		require.NoError(t, err)
		return req
	}

	t.Run("ApproveDebitsFund", func(t *testing.T) {
		req := submit(300)

		inReview, err := f.svc.MarkInReview(ctx, req.ID, "staff-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusInReview, inReview.Status)

		approved, err := f.svc.ApproveRequest(ctx, req.ID, nil, "looks good", "staff-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusApproved, approved.Status)
		require.True(t, approved.ApprovedAmount.Valid)
		assert.True(t, approved.ApprovedAmount.Decimal.Equal(decimal.NewFromInt(300)))

		fund, err := f.fundSvc.GetFund(ctx, f.fund.ID)
		require.NoError(t, err)
		assert.True(t, fund.Balance.Equal(decimal.NewFromInt(200)))

		movements, _, err := f.fundSvc.ListMovements(ctx, f.fund.ID, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, domain.MovementUse, movements[0].Type)
		require.NotNil(t, movements[0].RelatedRequestID)
		assert.Equal(t, req.ID, *movements[0].RelatedRequestID)
	})

	t.Run("PartialApproval", func(t *testing.T) {
		req := submit(100)
		partial := decimal.NewFromInt(60)
		approved, err := f.svc.ApproveRequest(ctx, req.ID, &partial, "receipts only cover part", "staff-1")
		require.NoError(t, err)
		assert.True(t, approved.ApprovedAmount.Decimal.Equal(partial))

		fund, err := f.fundSvc.GetFund(ctx, f.fund.ID)
		require.NoError(t, err)
		assert.True(t, fund.Balance.Equal(decimal.NewFromInt(140)))
	})

	t.Run("ApproveBeyondBalanceFails", func(t *testing.T) {
		req := submit(100)
		over := decimal.NewFromInt(900)
		_, err := f.svc.ApproveRequest(ctx, req.ID, &over, "", "staff-1")
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		// The request must stay reviewable after the failed approval.
		current, err := f.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.True(t, current.Status.CanBeReviewed())
	})

	t.Run("RejectNeedsReason", func(t *testing.T) {
		req := submit(20)
		_, err := f.svc.RejectRequest(ctx, req.ID, "", "", "staff-1")
		assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))

		rejected, err := f.svc.RejectRequest(ctx, req.ID, "Receipt unreadable", "resubmit please", "staff-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusRejected, rejected.Status)
		assert.Equal(t, "Receipt unreadable", rejected.RejectionReason)

		_, err = f.svc.ApproveRequest(ctx, req.ID, nil, "", "staff-1")
		assert.Equal(t, domain.CodeInvalidStateTransition, domain.CodeOf(err))
	})

	t.Run("PaymentFlow", func(t *testing.T) {
		req := submit(30)
		_, err := f.svc.ApproveRequest(ctx, req.ID, nil, "", "staff-1")
		require.NoError(t, err)

		// Paid requires the in-progress step first.
		_, err = f.svc.MarkPaid(ctx, req.ID, "wire-001", "staff-1")
		assert.Equal(t, domain.CodeInvalidStateTransition, domain.CodeOf(err))

		inProgress, err := f.svc.MarkInProgress(ctx, req.ID, "staff-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPaymentInProgress, inProgress.Status)

		_, err = f.svc.MarkPaid(ctx, req.ID, "", "staff-1")
		assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))

		paid, err := f.svc.MarkPaid(ctx, req.ID, "wire-001", "staff-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPaid, paid.Status)
		assert.Equal(t, "wire-001", paid.PaymentReference)
	})
}

func TestReimbursementService_Messages(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(25), "bus ticket", bankPayout(), nil)
	require.NoError(t, err)

	_, err = f.svc.AddMessage(ctx, req.ID, "ben-1", domain.AuthorRoleBeneficiary, "Attached the missing receipt")
	require.NoError(t, err)
	_, err = f.svc.AddMessage(ctx, req.ID, "staff-1", domain.AuthorRoleStaff, "Thanks, reviewing now")
	require.NoError(t, err)

	_, err = f.svc.AddMessage(ctx, req.ID, "ben-1", domain.AuthorRoleBeneficiary, "")
	assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))

	_, err = f.svc.AddMessage(ctx, req.ID, "x", domain.AuthorRole("ADMIN"), "hi")
	assert.Equal(t, domain.CodeValidationError, domain.CodeOf(err))

	msgs, err := f.svc.ListMessages(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.AuthorRoleBeneficiary, msgs[0].AuthorRole)
	assert.Equal(t, domain.AuthorRoleStaff, msgs[1].AuthorRole)
}

func TestReimbursementService_ConcurrentApprovals(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	// Balance 500: adjust down to 100 so two 80s cannot both clear.
	_, err := f.fundSvc.AdjustBalance(ctx, f.fund.ID, decimal.NewFromInt(-400), "test setup", "staff-1")
	require.NoError(t, err)

	reqA, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(80), "flight A", bankPayout(), nil)
	require.NoError(t, err)
	reqB, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(80), "flight B", bankPayout(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{reqA.ID, reqB.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.ApproveRequest(ctx, id, nil, "", "staff-1")
		}(i, id)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.CodeOf(err) == domain.CodeInsufficientBalance:
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	fund, err := f.fundSvc.GetFund(ctx, f.fund.ID)
	require.NoError(t, err)
	assert.True(t, fund.Balance.Equal(decimal.NewFromInt(20)), "final balance %s", fund.Balance)
}

func TestReimbursementService_DoubleApprovalSingleDebit(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(100), "conference fee", bankPayout(), nil)
	require.NoError(t, err)

	// Two reviewers race to approve the same request. The second writer must
	// fail on the in-transaction status check, not debit again.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ApproveRequest(ctx, req.ID, nil, "", fmt.Sprintf("staff-%d", i+1))
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.CodeOf(err) == domain.CodeInvalidStateTransition:
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	fund, err := f.fundSvc.GetFund(ctx, f.fund.ID)
	require.NoError(t, err)
	assert.True(t, fund.Balance.Equal(decimal.NewFromInt(400)), "final balance %s", fund.Balance)

	movements, _, err := f.fundSvc.ListMovements(ctx, f.fund.ID, 1, 100)
	require.NoError(t, err)
	var debits int
	for _, mv := range movements {
		if mv.Type == domain.MovementUse {
			debits++
		}
	}
	assert.Equal(t, 1, debits)
}

func TestReimbursementService_StaleRejectLosesToApproval(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(150), "train tickets", bankPayout(), nil)
	require.NoError(t, err)

	stale, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusPending, stale.Status)

	_, err = f.svc.ApproveRequest(ctx, req.ID, nil, "", "staff-1")
	require.NoError(t, err)

	// A writer still holding the pending snapshot loses the conditional
	// update instead of overwriting the committed approval.
	stale.Status = domain.RequestStatusRejected
	stale.RejectionReason = "too late"
	err = f.store.Requests().Update(ctx, stale, domain.RequestStatusPending)
	assert.Equal(t, domain.CodeInvalidStateTransition, domain.CodeOf(err))

	current, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, current.Status)
	assert.Empty(t, current.RejectionReason)

	fund, err := f.fundSvc.GetFund(ctx, f.fund.ID)
	require.NoError(t, err)
	assert.True(t, fund.Balance.Equal(decimal.NewFromInt(350)))
}

func TestReimbursementService_FailedSubmissionRemovesDocuments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.SeedBeneficiary(&domain.Beneficiary{ID: "ben-1", FullName: "Ana Torres"})
	audit := &recordingAudit{}
	locks := NewFundLocks(time.Second)
	policy := testPolicy()

	fundSvc := NewFundService(store.Funds(), store.Beneficiaries(), audit, locks, policy)
	_, err := fundSvc.CreateFund(ctx, "ben-1", nil, nil, "staff-1")
	require.NoError(t, err)

	docStore := &recordingDocStore{}
	svc := NewReimbursementService(
		failingCreateRepo{store.Requests()},
		store.Funds(), store.PaymentMethods(), store.Beneficiaries(),
		docStore, audit, locks, policy,
	)

	docs := []DocumentUpload{
		{FileName: "receipt-1.pdf", ContentType: "application/pdf", Contents: []byte("a")},
		{FileName: "receipt-2.pdf", ContentType: "application/pdf", Contents: []byte("b")},
	}
	_, err = svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(75), "hotel", bankPayout(), docs)
	require.Error(t, err)

	// Every file stored before the failed insert is removed again.
	require.Len(t, docStore.stored, 2)
	assert.ElementsMatch(t, docStore.stored, docStore.deleted)
}

func TestReimbursementService_ConcurrentSubmissionNumbers(t *testing.T) {
	f := newReimbursementFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := f.svc.SubmitRequest(ctx, "ben-1", decimal.NewFromInt(1), "small claim", bankPayout(), nil)
			if err != nil {
				errs[i] = err
				return
			}
			numbers[i] = req.RequestNumber
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate request number %s", numbers[i])
		seen[numbers[i]] = true
	}
}
