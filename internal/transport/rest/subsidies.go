package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"soro-core/internal/transport/auth"
)

func (h *Handler) allocateSubsidy(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	req, err := ValidateAllocateSubsidyRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	grant, err := h.subsidies.Allocate(r.Context(), req.SFDID, req.Amount, actorID, req.EndDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Response(w, "subsidy allocated", grant, 0, "success", http.StatusCreated)
}

func (h *Handler) getSubsidy(w http.ResponseWriter, r *http.Request) {
	subsidyID := chi.URLParam(r, "subsidy_id")
	if subsidyID == "" {
		ErrorBadRequest(w, "subsidy_id is required")
		return
	}

	view, err := h.subsidies.Get(r.Context(), subsidyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "", view)
}

func (h *Handler) recordSubsidyUsage(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetActorID(r.Context()); err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	subsidyID := chi.URLParam(r, "subsidy_id")
	req, err := ValidateSubsidyUsageRequest(r)
	if err != nil {
		ErrorBadRequest(w, err.Error())
		return
	}

	usage, err := h.subsidies.RecordUsage(r.Context(), subsidyID, req.LoanID, req.Amount, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Response(w, "usage recorded", usage, 0, "success", http.StatusCreated)
}

func (h *Handler) revokeSubsidy(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	subsidyID := chi.URLParam(r, "subsidy_id")
	grant, err := h.subsidies.Revoke(r.Context(), subsidyID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	Success(w, "subsidy revoked", grant)
}
