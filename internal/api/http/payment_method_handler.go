package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/service"
)

// PaymentMethodHandler exposes the saved payment method vault
type PaymentMethodHandler struct {
	methodSvc service.PaymentMethodService
}

func NewPaymentMethodHandler(methodSvc service.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methodSvc: methodSvc}
}

type createMethodBody struct {
	Label  string            `json:"label"`
	Payout domain.PayoutInfo `json:"payout"`
}

func (h *PaymentMethodHandler) CreateMethod(w http.ResponseWriter, r *http.Request) {
	var body createMethodBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	method, err := h.methodSvc.CreateMethod(r.Context(), mux.Vars(r)["beneficiaryId"], body.Label, body.Payout)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, method)
}

func (h *PaymentMethodHandler) GetMethod(w http.ResponseWriter, r *http.Request) {
	method, err := h.methodSvc.GetMethod(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, method)
}

type methodListResponse struct {
	Methods []domain.PaymentMethod `json:"payment_methods"`
}

func (h *PaymentMethodHandler) ListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.methodSvc.ListMethods(r.Context(), mux.Vars(r)["beneficiaryId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, methodListResponse{Methods: methods})
}

func (h *PaymentMethodHandler) DeleteMethod(w http.ResponseWriter, r *http.Request) {
	if err := h.methodSvc.DeleteMethod(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
