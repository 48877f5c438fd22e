package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/service"
)

// maxUploadBytes caps the total size of a multipart submission, receipts
// included.
const maxUploadBytes = 20 << 20

// RequestHandler exposes the reimbursement workflow operations
type RequestHandler struct {
	reimbursementSvc service.ReimbursementService
}

func NewRequestHandler(reimbursementSvc service.ReimbursementService) *RequestHandler {
	return &RequestHandler{reimbursementSvc: reimbursementSvc}
}

type submitRequestBody struct {
	BeneficiaryID string            `json:"beneficiary_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	Payout        domain.PayoutInfo `json:"payout"`
}

// SubmitRequest accepts either a JSON body (no receipts) or a multipart form
// whose "payload" part carries the same JSON and whose "documents" parts
// carry the receipt files.
func (h *RequestHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	var documents []service.DocumentUpload

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, domain.NewError(domain.CodeValidationError, "invalid multipart form: %v", err))
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &body); err != nil {
			writeError(w, domain.NewError(domain.CodeValidationError, "invalid payload part: %v", err))
			return
		}
		for _, header := range r.MultipartForm.File["documents"] {
			file, err := header.Open()
			if err != nil {
				writeError(w, domain.NewError(domain.CodeValidationError, "failed to open upload %s: %v", header.Filename, err))
				return
			}
			contents, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				writeError(w, domain.NewError(domain.CodeValidationError, "failed to read upload %s: %v", header.Filename, err))
				return
			}
			documents = append(documents, service.DocumentUpload{
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Contents:    contents,
			})
		}
	} else {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}

	req, err := h.reimbursementSvc.SubmitRequest(r.Context(), body.BeneficiaryID, body.Amount, body.Description, body.Payout, documents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.reimbursementSvc.GetRequest(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type requestListResponse struct {
	Requests []domain.ReimbursementRequest `json:"requests"`
	Total    int32                         `json:"total"`
}

func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	requests, total, err := h.reimbursementSvc.ListRequests(
		r.Context(),
		mux.Vars(r)["beneficiaryId"],
		r.URL.Query().Get("status"),
		page, pageSize,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requestListResponse{Requests: requests, Total: total})
}

func (h *RequestHandler) MarkInReview(w http.ResponseWriter, r *http.Request) {
	req, err := h.reimbursementSvc.MarkInReview(r.Context(), mux.Vars(r)["id"], actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type approveRequestBody struct {
	ApprovedAmount *decimal.Decimal `json:"approved_amount,omitempty"`
	Comments       string           `json:"comments,omitempty"`
}

func (h *RequestHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var body approveRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.reimbursementSvc.ApproveRequest(r.Context(), mux.Vars(r)["id"], body.ApprovedAmount, body.Comments, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type rejectRequestBody struct {
	Reason   string `json:"reason"`
	Comments string `json:"comments,omitempty"`
}

func (h *RequestHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body rejectRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.reimbursementSvc.RejectRequest(r.Context(), mux.Vars(r)["id"], body.Reason, body.Comments, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) MarkInProgress(w http.ResponseWriter, r *http.Request) {
	req, err := h.reimbursementSvc.MarkInProgress(r.Context(), mux.Vars(r)["id"], actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type markPaidBody struct {
	PaymentReference string `json:"payment_reference"`
}

func (h *RequestHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var body markPaidBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	req, err := h.reimbursementSvc.MarkPaid(r.Context(), mux.Vars(r)["id"], body.PaymentReference, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type addMessageBody struct {
	AuthorRole domain.AuthorRole `json:"author_role"`
	Text       string            `json:"text"`
}

func (h *RequestHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var body addMessageBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.reimbursementSvc.AddMessage(r.Context(), mux.Vars(r)["id"], actorID(r), body.AuthorRole, body.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type messagesResponse struct {
	Messages []domain.RequestMessage `json:"messages"`
}

func (h *RequestHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.reimbursementSvc.ListMessages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: messages})
}
