package rest

import (
	"errors"
	"log"
	"net/http"

	"soro-core/internal/domain"
)

// writeDomainError maps the typed domain errors onto the response envelope.
// Business-rule rejections carry their structured detail so clients can
// render exact figures instead of a generic failure.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
		fundsErr      *domain.InsufficientFundsError
		transitionErr *domain.InvalidTransitionError
		inactiveErr   *domain.GrantInactiveError
		overErr       *domain.OverpaymentError
		conflictErr   *domain.ConcurrentModificationError
	)

	switch {
	case errors.As(err, &validationErr):
		ErrorBadRequest(w, validationErr.Error())
	case errors.As(err, &notFoundErr):
		ErrorNotFound(w, notFoundErr.Error())
	case errors.As(err, &fundsErr):
		Response(w, fundsErr.Error(), map[string]interface{}{
			"subsidy_id": fundsErr.SubsidyID,
			"available":  fundsErr.Available,
			"requested":  fundsErr.Requested,
		}, 422, "error", http.StatusUnprocessableEntity)
	case errors.As(err, &transitionErr):
		Response(w, transitionErr.Error(), map[string]interface{}{
			"loan_id": transitionErr.LoanID,
			"from":    transitionErr.From,
			"to":      transitionErr.To,
		}, 409, "error", http.StatusConflict)
	case errors.As(err, &inactiveErr):
		Response(w, inactiveErr.Error(), map[string]interface{}{
			"subsidy_id": inactiveErr.SubsidyID,
			"status":     inactiveErr.Status,
		}, 409, "error", http.StatusConflict)
	case errors.As(err, &overErr):
		Response(w, overErr.Error(), map[string]interface{}{
			"loan_id": overErr.LoanID,
			"excess":  overErr.Excess,
		}, 422, "error", http.StatusUnprocessableEntity)
	case errors.As(err, &conflictErr):
		Error(w, conflictErr.Error(), 409, http.StatusConflict)
	default:
		log.Printf("[HTTP] internal error: %v", err)
		ErrorInternal(w, "internal error")
	}
}
