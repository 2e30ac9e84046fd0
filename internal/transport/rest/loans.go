package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"soro-core/internal/transport/auth"
)

func (h *Handler) createLoan(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetActorID(r.Context()); err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	in, err := ValidateCreateLoanRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	loan, err := h.loans.CreateApplication(r.Context(), *in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Response(w, "loan application created", loan, 0, "success", http.StatusCreated)
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	view, err := h.loans.GetView(r.Context(), loanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", view)
}

func (h *Handler) getLoanSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	view, err := h.loans.GetSchedule(r.Context(), loanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", view)
}

func (h *Handler) approveLoan(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loanID := chi.URLParam(r, "loan_id")
	loan, err := h.loans.Approve(r.Context(), loanID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "loan approved", loan)
}

func (h *Handler) rejectLoan(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loanID := chi.URLParam(r, "loan_id")
	req, err := ValidateRejectLoanRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	loan, err := h.loans.Reject(r.Context(), loanID, actorID, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "loan rejected", loan)
}

func (h *Handler) disburseLoan(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	loanID := chi.URLParam(r, "loan_id")
	loan, err := h.loans.Disburse(r.Context(), loanID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "loan disbursed", loan)
}

func (h *Handler) listLoanPayments(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	if loanID == "" {
		ErrorBadRequest(w, "loan_id is required")
		return
	}

	payments, err := h.payments.History(r.Context(), loanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", payments)
}
