package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"travelfund-backend/internal/domain"
	"travelfund-backend/internal/logger"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		logger.Error("Unhandled internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeAlreadyExists:
		status = http.StatusConflict
	case domain.CodeInvalidStateTransition:
		status = http.StatusConflict
	case domain.CodeInsufficientBalance, domain.CodeRenewalLimitExceeded:
		status = http.StatusUnprocessableEntity
	case domain.CodeValidationError:
		status = http.StatusBadRequest
	case domain.CodeTransientConflict:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Code: string(de.Code), Message: de.Detail})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewError(domain.CodeValidationError, "invalid request body: %v", err)
	}
	return nil
}

// actorID reads the authenticated staff/beneficiary id injected by the
// upstream gateway. Authentication itself is not this service's job.
func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func pagination(r *http.Request) (page, pageSize int32) {
	page, pageSize = 1, 20
	if v, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 32); err == nil && v > 0 {
		page = int32(v)
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("page_size"), 10, 32); err == nil && v > 0 && v <= 100 {
		pageSize = int32(v)
	}
	return page, pageSize
}
