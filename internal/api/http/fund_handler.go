package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/service"
)

// FundHandler exposes the fund ledger operations
type FundHandler struct {
	fundSvc service.FundService
}

func NewFundHandler(fundSvc service.FundService) *FundHandler {
	return &FundHandler{fundSvc: fundSvc}
}

type createFundRequest struct {
	BeneficiaryID string           `json:"beneficiary_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PeriodDays    *int             `json:"period_days,omitempty"`
}

func (h *FundHandler) CreateFund(w http.ResponseWriter, r *http.Request) {
	var body createFundRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.fundSvc.CreateFund(r.Context(), body.BeneficiaryID, body.Amount, body.PeriodDays, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fund)
}

func (h *FundHandler) GetFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.fundSvc.GetFund(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

func (h *FundHandler) GetFundByBeneficiary(w http.ResponseWriter, r *http.Request) {
	fund, err := h.fundSvc.GetFundByBeneficiary(r.Context(), mux.Vars(r)["beneficiaryId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

func (h *FundHandler) RenewFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.fundSvc.RenewFund(r.Context(), mux.Vars(r)["id"], actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

type blockFundRequest struct {
	Reason             domain.BlockReason `json:"reason"`
	CustomReason       string             `json:"custom_reason,omitempty"`
	ReactivationAmount *decimal.Decimal   `json:"reactivation_amount,omitempty"`
}

func (h *FundHandler) BlockFund(w http.ResponseWriter, r *http.Request) {
	var body blockFundRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.fundSvc.BlockFund(r.Context(), mux.Vars(r)["id"], body.Reason, body.CustomReason, body.ReactivationAmount, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

func (h *FundHandler) UnblockFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.fundSvc.UnblockFund(r.Context(), mux.Vars(r)["id"], actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

type deactivateFundRequest struct {
	Reason          domain.DeactivationReason `json:"reason"`
	CustomReason    string                    `json:"custom_reason,omitempty"`
	PreserveBalance bool                      `json:"preserve_balance"`
}

func (h *FundHandler) DeactivateFund(w http.ResponseWriter, r *http.Request) {
	var body deactivateFundRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.fundSvc.DeactivateFund(r.Context(), mux.Vars(r)["id"], body.Reason, body.CustomReason, body.PreserveBalance, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

type reactivateFundRequest struct {
	NewExpirationDate *time.Time `json:"new_expiration_date,omitempty"`
}

func (h *FundHandler) ReactivateFund(w http.ResponseWriter, r *http.Request) {
	var body reactivateFundRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.fundSvc.ReactivateFund(r.Context(), mux.Vars(r)["id"], body.NewExpirationDate, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

type debitFundRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	RelatedRequestID *string         `json:"related_request_id,omitempty"`
}

func (h *FundHandler) DebitFund(w http.ResponseWriter, r *http.Request) {
	var body debitFundRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.fundSvc.DebitFund(r.Context(), mux.Vars(r)["id"], body.Amount, body.Description, body.RelatedRequestID, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

type adjustBalanceRequest struct {
	Delta       decimal.Decimal `json:"delta"`
	Description string          `json:"description"`
}

func (h *FundHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var body adjustBalanceRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	fund, err := h.fundSvc.AdjustBalance(r.Context(), mux.Vars(r)["id"], body.Delta, body.Description, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

type movementsResponse struct {
	Movements []domain.FundMovement `json:"movements"`
	Total     int32                 `json:"total"`
}

func (h *FundHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	movements, total, err := h.fundSvc.ListMovements(r.Context(), mux.Vars(r)["id"], page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movementsResponse{Movements: movements, Total: total})
}
