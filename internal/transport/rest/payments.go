package rest

import (
	"net/http"

	"soro-core/internal/schedule"
)

// calculateLoanSchedule is the pure quote callable: no row is read or
// written, the response is the same shape the disbursement path persists.
func (h *Handler) calculateLoanSchedule(w http.ResponseWriter, r *http.Request) {
	req, err := ValidateQuoteRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	quote, err := schedule.Compute(req.Principal, req.InterestRate, req.DurationMonths, req.StartDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", quote)
}

func (h *Handler) applyLoanPayment(w http.ResponseWriter, r *http.Request) {
	req, err := ValidatePaymentRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	result, err := h.payments.Apply(r.Context(), req.LoanID, req.Amount, req.Method, req.TransactionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "payment applied", result)
}
