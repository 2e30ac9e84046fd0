package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"soro-core/internal/clients"
	"soro-core/internal/domain"
	"soro-core/internal/repository"
	"soro-core/internal/schedule"
)

type PaymentStore interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.LoanPayment, error)
	ListByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error)
	ApplyAllocation(ctx context.Context, payment *domain.LoanPayment, installments []domain.ScheduleInstallment, loan *domain.Loan) error
}

// OverpaymentPolicy decides what happens to a payment exceeding everything
// outstanding on the loan. The original platform left this undefined, so it
// is a deployment choice rather than a constant.
type OverpaymentPolicy string

const (
	// OverpaymentReject refuses the whole payment and reports the excess.
	OverpaymentReject OverpaymentPolicy = "reject"
	// OverpaymentCredit accepts the payment and records the excess on the
	// payment row as prepayment credit.
	OverpaymentCredit OverpaymentPolicy = "credit"
)

type PaymentService struct {
	loans        LoanStore
	installments InstallmentStore
	payments     PaymentStore
	policy       schedule.PenaltyPolicy
	overpayment  OverpaymentPolicy

	redis  *clients.RedisClient
	events *clients.EventClient
}

func NewPaymentService(
	loans LoanStore,
	installments InstallmentStore,
	payments PaymentStore,
	policy schedule.PenaltyPolicy,
	overpayment OverpaymentPolicy,
	redis *clients.RedisClient,
	events *clients.EventClient,
) *PaymentService {
	if overpayment == "" {
		overpayment = OverpaymentReject
	}
	return &PaymentService{
		loans:        loans,
		installments: installments,
		payments:     payments,
		policy:       policy,
		overpayment:  overpayment,
		redis:        redis,
		events:       events,
	}
}

type ApplyResult struct {
	Payment             *domain.LoanPayment          `json:"payment"`
	UpdatedInstallments []domain.ScheduleInstallment `json:"updated_installments"`
	LoanStatus          domain.LoanStatus            `json:"loan_status"`
	Replayed            bool                         `json:"replayed,omitempty"`
}

// Apply settles an incoming payment against the loan's outstanding
// installments, oldest first. TransactionID is the external payment reference
// and makes the call idempotent: replaying a reference returns the original
// outcome without touching the schedule again.
func (s *PaymentService) Apply(ctx context.Context, loanID string, amount int64, method, transactionID string) (*ApplyResult, error) {
	switch {
	case loanID == "":
		return nil, &domain.ValidationError{Field: "loan_id", Message: "loan_id is required"}
	case amount <= 0:
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be positive"}
	case transactionID == "":
		return nil, &domain.ValidationError{Field: "transaction_id", Message: "transaction_id is required"}
	}

	now := time.Now()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		loan, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return nil, err
		}
		if loan.Status != domain.LoanStatusActive {
			if loan.Status == domain.LoanStatusCompleted {
				return nil, &domain.OverpaymentError{LoanID: loanID, Excess: amount}
			}
			return nil, &domain.ValidationError{Field: "loan_id", Message: "loan is not active"}
		}

		outstanding, err := s.installments.ListOutstanding(ctx, loanID)
		if err != nil {
			return nil, err
		}
		if len(outstanding) == 0 {
			return nil, &domain.OverpaymentError{LoanID: loanID, Excess: amount}
		}

		updated, excess := allocate(outstanding, amount, now, s.policy)
		if excess > 0 && s.overpayment == OverpaymentReject {
			return nil, &domain.OverpaymentError{LoanID: loanID, Excess: excess}
		}

		allPaid := true
		var nextDue *time.Time
		for _, row := range merged(outstanding, updated) {
			if row.Status == domain.InstallmentPaid {
				continue
			}
			allPaid = false
			if nextDue == nil || row.DueDate.Before(*nextDue) {
				due := row.DueDate
				nextDue = &due
			}
		}

		prevStatus := loan.Status
		loan.LastPaymentDate = &now
		loan.NextPaymentDate = nextDue
		if allPaid {
			loan.Status = domain.LoanStatusCompleted
		}

		payment := &domain.LoanPayment{
			ID:            uuid.NewString(),
			LoanID:        loanID,
			Amount:        amount,
			ExcessAmount:  excess,
			Method:        method,
			Status:        domain.PaymentCompleted,
			PaymentDate:   now,
			TransactionID: transactionID,
		}

		err = s.payments.ApplyAllocation(ctx, payment, updated, loan)
		if err == repository.ErrDuplicateTransaction {
			existing, lookupErr := s.payments.GetByTransactionID(ctx, transactionID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return &ApplyResult{Payment: existing, LoanStatus: prevStatus, Replayed: true}, nil
		}
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.invalidateScheduleCache(ctx, loanID)
		_ = s.events.NotifyPaymentApplied(ctx, loan, amount, transactionID)
		if loan.Status != prevStatus {
			_ = s.events.NotifyLoanStatusChanged(ctx, loan, prevStatus)
		}

		return &ApplyResult{
			Payment:             payment,
			UpdatedInstallments: updated,
			LoanStatus:          loan.Status,
		}, nil
	}

	return nil, &domain.ConcurrentModificationError{Resource: "loan", ID: loanID, Attempts: maxAttempts}
}

func (s *PaymentService) History(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.payments.ListByLoan(ctx, loanID)
}

func (s *PaymentService) invalidateScheduleCache(ctx context.Context, loanID string) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, scheduleCacheKey(loanID))
}

// allocate walks the outstanding rows oldest-first and settles each one's
// late fee, interest and principal before moving on. A short payment leaves
// the current row partially paid and stops; nothing carries forward. Late
// fees are re-evaluated against the policy at application time, so a row's
// due amount is current when the payment lands on it. Returns the mutated
// rows and any amount left after the final installment.
func allocate(
	outstanding []domain.ScheduleInstallment,
	amount int64,
	now time.Time,
	policy schedule.PenaltyPolicy,
) ([]domain.ScheduleInstallment, int64) {
	remaining := amount
	var updated []domain.ScheduleInstallment

	for _, row := range outstanding {
		touched := false

		if days := policy.DaysOverdue(row.DueDate, now); days > 0 {
			fee := policy.LateFee(row.TotalAmount, days)
			status := row.Status
			if status == domain.InstallmentPending {
				status = domain.InstallmentOverdue
			}
			if status != row.Status || days != row.DaysOverdue || fee != row.LateFee {
				row.Status = status
				row.DaysOverdue = days
				row.LateFee = fee
				touched = true
			}
		}

		if remaining > 0 {
			due := row.Outstanding()
			if remaining >= due {
				row.Status = domain.InstallmentPaid
				row.PaidAmount = row.TotalAmount + row.LateFee
				paidAt := now
				row.PaidAt = &paidAt
				remaining -= due
			} else {
				row.Status = domain.InstallmentPartiallyPaid
				row.PaidAmount += remaining
				remaining = 0
			}
			touched = true
		}

		if touched {
			updated = append(updated, row)
		}
	}

	return updated, remaining
}

// merged overlays the mutated rows onto the original list by id.
func merged(original, updated []domain.ScheduleInstallment) []domain.ScheduleInstallment {
	byID := make(map[string]domain.ScheduleInstallment, len(updated))
	for _, row := range updated {
		byID[row.ID] = row
	}

	out := make([]domain.ScheduleInstallment, 0, len(original))
	for _, row := range original {
		if u, ok := byID[row.ID]; ok {
			out = append(out, u)
		} else {
			out = append(out, row)
		}
	}
	return out
}
