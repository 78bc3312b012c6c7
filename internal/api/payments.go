package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/obrapay/abono/internal/domain"
)

// ─── Payment Handlers ───────────────────────────────────────────────────────
//
// POST /v1/payments                      — record a payment
// GET  /v1/payments[?project_id=N]       — list payments
// GET  /v1/payments/search?q=TERM        — free-form search
// GET  /v1/payments/{id}                 — one payment
// POST /v1/payments/{id}/cancel          — soft cancel with reason
// GET  /v1/projects/{id}/outstanding     — balance snapshot

type recordPaymentRequest struct {
	ProjectID int64           `json:"project_id"`
	SaleID    *int64          `json:"sale_id,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Code, "invalid request body")
		return
	}

	entry, err := s.ledger.RecordPayment(r.Context(), domain.PaymentInput{
		ProjectID: req.ProjectID,
		SaleID:    req.SaleID,
		Timestamp: req.Timestamp,
		Amount:    req.Amount,
		Method:    domain.Method(req.Method),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	var projectID *int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrValidation.Code, "project_id must be an integer")
			return
		}
		projectID = &n
	}

	entries, err := s.ledger.ListPayments(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.PaymentEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSearchPayments(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ledger.SearchPayments(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.PaymentEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Code, "payment id must be an integer")
		return
	}

	entry, err := s.ledger.GetPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type cancelPaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Code, "payment id must be an integer")
		return
	}

	var req cancelPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Code, "invalid request body")
		return
	}

	if err := s.ledger.CancelPayment(r.Context(), id, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Code, "project id must be an integer")
		return
	}

	out, err := s.ledger.Outstanding(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": id,
		"total_cost": out.TotalCost,
		"total_paid": out.TotalPaid,
		"pending":    out.Pending,
	})
}

// ─── Error Mapping ──────────────────────────────────────────────────────────

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyCancelledOrNotFound):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrSinglePaymentRequired),
		errors.Is(err, domain.ErrOverTotal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		writeError(w, statusFor(err), de.Code, de.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "payments.internal", "internal ledger error")
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
