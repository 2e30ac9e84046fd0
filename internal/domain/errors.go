package domain

import "fmt"

// ValidationError means the caller supplied a value outside the accepted
// range or shape. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NotFoundError reports a missing loan, grant, installment or payment row.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InsufficientFundsError rejects a subsidy usage that exceeds the grant's
// remaining balance. Carries both sides so the UI can render exact figures.
type InsufficientFundsError struct {
	SubsidyID string
	Available int64
	Requested int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("subsidy %s: insufficient funds: available %d, requested %d",
		e.SubsidyID, e.Available, e.Requested)
}

// InvalidTransitionError rejects an illegal loan status change.
type InvalidTransitionError struct {
	LoanID string
	From   LoanStatus
	To     LoanStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("loan %s: invalid transition %s -> %s", e.LoanID, e.From, e.To)
}

// GrantInactiveError rejects usage against a revoked or expired grant.
type GrantInactiveError struct {
	SubsidyID string
	Status    SubsidyStatus
}

func (e *GrantInactiveError) Error() string {
	return fmt.Sprintf("subsidy %s is %s", e.SubsidyID, e.Status)
}

// OverpaymentError surfaces the excess when a payment exceeds everything
// outstanding on a loan and the configured policy is to reject it.
type OverpaymentError struct {
	LoanID string
	Excess int64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("loan %s: payment exceeds outstanding balance by %d", e.LoanID, e.Excess)
}

// ConcurrentModificationError is returned after bounded retries of an
// optimistic update keep losing to concurrent writers.
type ConcurrentModificationError struct {
	Resource string
	ID       string
	Attempts int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s: concurrent modification, gave up after %d attempts",
		e.Resource, e.ID, e.Attempts)
}
