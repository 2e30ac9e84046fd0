package service

import (
	"soro-core/internal/domain"
	"soro-core/internal/schedule"
)

// maxAttempts bounds optimistic-concurrency retries on mutating operations.
const maxAttempts = 3

// allowedTransitions is the loan lifecycle:
//
//	pending -> approved -> disbursed -> active -> completed
//
// with rejected reachable before disbursement and defaulted from the active
// branch. rejected, completed and defaulted are terminal.
var allowedTransitions = map[domain.LoanStatus][]domain.LoanStatus{
	domain.LoanStatusPending:   {domain.LoanStatusApproved, domain.LoanStatusRejected},
	domain.LoanStatusApproved:  {domain.LoanStatusDisbursed, domain.LoanStatusRejected},
	domain.LoanStatusDisbursed: {domain.LoanStatusActive},
	domain.LoanStatusActive:    {domain.LoanStatusCompleted, domain.LoanStatusDefaulted},
}

func CanTransition(from, to domain.LoanStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func checkTransition(loanID string, from, to domain.LoanStatus) error {
	if !CanTransition(from, to) {
		return &domain.InvalidTransitionError{LoanID: loanID, From: from, To: to}
	}
	return nil
}

// DeriveDisplayStatus maps the persisted status plus the schedule summary to
// the coarse status dashboards show. "late" is purely derived: an active loan
// with overdue installments displays as late and reverts once they clear.
// The stored status never holds "late".
func DeriveDisplayStatus(status domain.LoanStatus, summary schedule.Summary) domain.LoanStatus {
	if status != domain.LoanStatusActive {
		return status
	}
	if summary.Overdue > 0 {
		return domain.LoanStatusLate
	}
	return domain.LoanStatusActive
}
