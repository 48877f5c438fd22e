package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"travelfund-backend/internal/service"
)

// NewRouter builds the full API surface under /api/v1.
func NewRouter(fundSvc service.FundService, reimbursementSvc service.ReimbursementService, methodSvc service.PaymentMethodService) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	registerFundRoutes(api, NewFundHandler(fundSvc))
	registerRequestRoutes(api, NewRequestHandler(reimbursementSvc))
	registerPaymentMethodRoutes(api, NewPaymentMethodHandler(methodSvc))

	return router
}

func registerFundRoutes(api *mux.Router, h *FundHandler) {
	api.HandleFunc("/funds", h.CreateFund).Methods("POST")
	api.HandleFunc("/funds/{id}", h.GetFund).Methods("GET")
	api.HandleFunc("/funds/{id}/renew", h.RenewFund).Methods("POST")
	api.HandleFunc("/funds/{id}/block", h.BlockFund).Methods("POST")
	api.HandleFunc("/funds/{id}/unblock", h.UnblockFund).Methods("POST")
	api.HandleFunc("/funds/{id}/deactivate", h.DeactivateFund).Methods("POST")
	api.HandleFunc("/funds/{id}/reactivate", h.ReactivateFund).Methods("POST")
	api.HandleFunc("/funds/{id}/debit", h.DebitFund).Methods("POST")
	api.HandleFunc("/funds/{id}/adjust", h.AdjustBalance).Methods("POST")
	api.HandleFunc("/funds/{id}/movements", h.ListMovements).Methods("GET")
	api.HandleFunc("/beneficiaries/{beneficiaryId}/fund", h.GetFundByBeneficiary).Methods("GET")
}

func registerRequestRoutes(api *mux.Router, h *RequestHandler) {
	api.HandleFunc("/requests", h.SubmitRequest).Methods("POST")
	api.HandleFunc("/requests/{id}", h.GetRequest).Methods("GET")
	api.HandleFunc("/requests/{id}/review", h.MarkInReview).Methods("POST")
	api.HandleFunc("/requests/{id}/approve", h.ApproveRequest).Methods("POST")
	api.HandleFunc("/requests/{id}/reject", h.RejectRequest).Methods("POST")
	api.HandleFunc("/requests/{id}/payment", h.MarkInProgress).Methods("POST")
	api.HandleFunc("/requests/{id}/paid", h.MarkPaid).Methods("POST")
	api.HandleFunc("/requests/{id}/messages", h.AddMessage).Methods("POST")
	api.HandleFunc("/requests/{id}/messages", h.ListMessages).Methods("GET")
	api.HandleFunc("/beneficiaries/{beneficiaryId}/requests", h.ListRequests).Methods("GET")
}

func registerPaymentMethodRoutes(api *mux.Router, h *PaymentMethodHandler) {
	api.HandleFunc("/beneficiaries/{beneficiaryId}/payment-methods", h.CreateMethod).Methods("POST")
	api.HandleFunc("/beneficiaries/{beneficiaryId}/payment-methods", h.ListMethods).Methods("GET")
	api.HandleFunc("/payment-methods/{id}", h.GetMethod).Methods("GET")
	api.HandleFunc("/payment-methods/{id}", h.DeleteMethod).Methods("DELETE")
}
