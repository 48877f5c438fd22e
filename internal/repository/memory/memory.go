// Package memory provides a mutex-guarded in-memory implementation of the
// repository interfaces. It backs the unit tests; deployments use the
// postgres package.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
)

type Store struct {
	mu sync.Mutex

	funds        map[string]*domain.Fund
	fundByBenef  map[string]string
	movements    map[string][]domain.FundMovement
	requests     map[string]*domain.ReimbursementRequest
	requestIDs   map[string]string // request number -> id
	messages     map[string][]domain.RequestMessage
	methods      map[string]*domain.PaymentMethod
	beneficiarys map[string]*domain.Beneficiary
}

func NewStore() *Store {
	return &Store{
		funds:        make(map[string]*domain.Fund),
		fundByBenef:  make(map[string]string),
		movements:    make(map[string][]domain.FundMovement),
		requests:     make(map[string]*domain.ReimbursementRequest),
		requestIDs:   make(map[string]string),
		messages:     make(map[string][]domain.RequestMessage),
		methods:      make(map[string]*domain.PaymentMethod),
		beneficiarys: make(map[string]*domain.Beneficiary),
	}
}

// SeedBeneficiary registers a beneficiary so existence checks pass.
func (s *Store) SeedBeneficiary(b *domain.Beneficiary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.beneficiarys[b.ID] = &cp
}

// --- FundRepository ---

func (s *Store) Create(ctx context.Context, fund *domain.Fund, creation *domain.FundMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fundByBenef[fund.BeneficiaryID]; ok {
		return domain.ErrFundAlreadyExists
	}
	cp := *fund
	s.funds[fund.ID] = &cp
	s.fundByBenef[fund.BeneficiaryID] = fund.ID
	s.movements[fund.ID] = append(s.movements[fund.ID], *creation)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fundLocked(id)
}

func (s *Store) GetByBeneficiary(ctx context.Context, beneficiaryID string) (*domain.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.fundByBenef[beneficiaryID]
	if !ok {
		return nil, domain.ErrFundNotFound
	}
	return s.fundLocked(id)
}

func (s *Store) UpdateWithMovement(ctx context.Context, fund *domain.Fund, mv *domain.FundMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.funds[fund.ID]; !ok {
		return domain.ErrFundNotFound
	}
	cp := *fund
	s.funds[fund.ID] = &cp
	if mv != nil {
		s.movements[fund.ID] = append(s.movements[fund.ID], *mv)
	}
	return nil
}

func (s *Store) ListMovements(ctx context.Context, fundID string, page, pageSize int32) ([]domain.FundMovement, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.movements[fundID]
	total := int32(len(all))
	out := make([]domain.FundMovement, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (s *Store) ListExpirable(ctx context.Context, cutoff time.Time) ([]domain.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Fund
	for _, f := range s.funds {
		if (f.State == domain.FundStateActive || f.State == domain.FundStateBlocked) && f.ExpirationDate.Before(cutoff) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *Store) ListRenewable(ctx context.Context, cutoff time.Time) ([]domain.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Fund
	for _, f := range s.funds {
		if !f.Renewal.Enabled || f.Renewal.NextRenewalAt == nil || f.Renewal.NextRenewalAt.After(cutoff) {
			continue
		}
		switch f.State {
		case domain.FundStateActive, domain.FundStateExpired, domain.FundStateBlockedExpired:
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *Store) fundLocked(id string) (*domain.Fund, error) {
	f, ok := s.funds[id]
	if !ok {
		return nil, domain.ErrFundNotFound
	}
	cp := *f
	return &cp, nil
}

// --- RequestRepository ---

func (s *Store) CreateRequest(ctx context.Context, req *domain.ReimbursementRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requestIDs[req.RequestNumber]; ok {
		return domain.NewError(domain.CodeAlreadyExists, "request number %s already taken", req.RequestNumber)
	}
	cp := *req
	cp.Documents = append([]domain.RequestDocument(nil), req.Documents...)
	s.requests[req.ID] = &cp
	s.requestIDs[req.RequestNumber] = req.ID
	return nil
}

func (s *Store) GetRequestByID(ctx context.Context, id string) (*domain.ReimbursementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestLocked(id)
}

func (s *Store) UpdateRequest(ctx context.Context, req *domain.ReimbursementRequest, expected domain.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[req.ID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if stored.Status != expected {
		return domain.NewError(domain.CodeInvalidStateTransition,
			"request %s is no longer in %s", req.ID, expected)
	}
	cp := *req
	cp.Documents = append([]domain.RequestDocument(nil), req.Documents...)
	cp.Messages = nil
	s.requests[req.ID] = &cp
	return nil
}

func (s *Store) ExistsByNumber(ctx context.Context, requestNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requestIDs[requestNumber]
	return ok, nil
}

func (s *Store) CountByYear(ctx context.Context, year int) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int32
	for _, req := range s.requests {
		if req.SubmittedAt.Year() == year {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListByBeneficiary(ctx context.Context, beneficiaryID string, status string, page, pageSize int32) ([]domain.ReimbursementRequest, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.ReimbursementRequest
	for _, req := range s.requests {
		if req.BeneficiaryID != beneficiaryID {
			continue
		}
		if status != "" && !strings.EqualFold(string(req.Status), status) {
			continue
		}
		all = append(all, *req)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].SubmittedAt.After(all[j].SubmittedAt) })

	total := int32(len(all))
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *Store) AddMessage(ctx context.Context, msg *domain.RequestMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[msg.RequestID]; !ok {
		return domain.ErrRequestNotFound
	}
	s.messages[msg.RequestID] = append(s.messages[msg.RequestID], *msg)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, requestID string) ([]domain.RequestMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[requestID]
	out := make([]domain.RequestMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Store) ApproveWithDebit(ctx context.Context, req *domain.ReimbursementRequest, approvedAmount decimal.Decimal, mv *domain.FundMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[req.ID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	// Re-check under the store lock; the caller's copy may be stale when two
	// approvals race on the same request.
	if !stored.Status.CanBeReviewed() {
		return domain.NewError(domain.CodeInvalidStateTransition,
			"request %s is no longer reviewable", req.ID)
	}
	fund, ok := s.funds[req.FundID]
	if !ok {
		return domain.ErrFundNotFound
	}
	if fund.Balance.LessThan(approvedAmount) {
		return domain.ErrInsufficientBalance
	}

	mv.BalanceBefore = fund.Balance
	fund.Balance = fund.Balance.Sub(approvedAmount)
	fund.UpdatedAt = mv.Timestamp
	mv.BalanceAfter = fund.Balance
	s.movements[fund.ID] = append(s.movements[fund.ID], *mv)

	stored.Status = domain.RequestStatusApproved
	stored.ApprovedAmount = decimal.NewNullDecimal(approvedAmount)
	stored.ReviewComments = req.ReviewComments
	stored.ReviewedBy = req.ReviewedBy
	stored.UpdatedAt = req.UpdatedAt
	return nil
}

func (s *Store) requestLocked(id string) (*domain.ReimbursementRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	cp := *req
	cp.Documents = append([]domain.RequestDocument(nil), req.Documents...)
	cp.Messages = append([]domain.RequestMessage(nil), s.messages[id]...)
	return &cp, nil
}

// --- PaymentMethodRepository ---

func (s *Store) CreateMethod(ctx context.Context, method *domain.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *method
	s.methods[method.ID] = &cp
	return nil
}

func (s *Store) GetMethodByID(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.methods[id]
	if !ok {
		return nil, domain.ErrPaymentMethodNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMethodsByBeneficiary(ctx context.Context, beneficiaryID string) ([]domain.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PaymentMethod
	for _, m := range s.methods {
		if m.BeneficiaryID == beneficiaryID {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteMethod(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methods[id]; !ok {
		return domain.ErrPaymentMethodNotFound
	}
	delete(s.methods, id)
	return nil
}

// --- BeneficiaryRepository ---

func (s *Store) GetBeneficiaryByID(ctx context.Context, id string) (*domain.Beneficiary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beneficiarys[id]
	if !ok {
		return nil, domain.ErrBeneficiaryNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.beneficiarys[id]
	return ok, nil
}
