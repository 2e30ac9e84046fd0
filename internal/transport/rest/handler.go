package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"soro-core/internal/domain"
	"soro-core/internal/service"
)

type LoanLifecycle interface {
	CreateApplication(ctx context.Context, in service.CreateLoanInput) (*domain.Loan, error)
	Approve(ctx context.Context, loanID string, actorID int64) (*domain.Loan, error)
	Reject(ctx context.Context, loanID string, actorID int64, notes string) (*domain.Loan, error)
	Disburse(ctx context.Context, loanID string, actorID int64) (*domain.Loan, error)
	GetView(ctx context.Context, id string) (*service.LoanView, error)
	GetSchedule(ctx context.Context, loanID string) (*service.ScheduleView, error)
}

type PaymentApplier interface {
	Apply(ctx context.Context, loanID string, amount int64, method, transactionID string) (*service.ApplyResult, error)
	History(ctx context.Context, loanID string) ([]domain.LoanPayment, error)
}

type SubsidyLedger interface {
	Allocate(ctx context.Context, sfdID string, amount int64, actorID int64, endDate *time.Time) (*domain.SubsidyGrant, error)
	Get(ctx context.Context, subsidyID string) (*service.GrantView, error)
	RecordUsage(ctx context.Context, subsidyID, loanID string, amount int64, notes string) (*domain.SubsidyUsage, error)
	Revoke(ctx context.Context, subsidyID string, actorID int64) (*domain.SubsidyGrant, error)
}

type Handler struct {
	loans     LoanLifecycle
	payments  PaymentApplier
	subsidies SubsidyLedger
}

func NewHandler(loans LoanLifecycle, payments PaymentApplier, subsidies SubsidyLedger) *Handler {
	return &Handler{
		loans:     loans,
		payments:  payments,
		subsidies: subsidies,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "N'GNA SORO! core API")
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.createLoan)
		r.Get("/{loan_id}", h.getLoan)
		r.Get("/{loan_id}/schedule", h.getLoanSchedule)
		r.Get("/{loan_id}/payments", h.listLoanPayments)
		r.Post("/{loan_id}/approve", h.approveLoan)
		r.Post("/{loan_id}/reject", h.rejectLoan)
		r.Post("/{loan_id}/disburse", h.disburseLoan)
	})

	r.Route("/subsidies", func(r chi.Router) {
		r.Post("/", h.allocateSubsidy)
		r.Get("/{subsidy_id}", h.getSubsidy)
		r.Post("/{subsidy_id}/usages", h.recordSubsidyUsage)
		r.Post("/{subsidy_id}/revoke", h.revokeSubsidy)
	})

	// Standalone callables mirroring the platform's serverless surface.
	r.Post("/calculate-loan-schedule", h.calculateLoanSchedule)
	r.Post("/apply-loan-payment", h.applyLoanPayment)

	return r
}
