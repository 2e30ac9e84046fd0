package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyPolicy holds the externally configured overdue rules. Neither value
// is fixed by the platform: MEREF sets both per deployment. A zero rate
// disables late-fee accrual; a zero threshold disables automatic defaulting.
type PenaltyPolicy struct {
	LateFeeBpsPerDay int64 // basis points of the installment total, per overdue day
	DefaultAfterDays int   // days overdue after which the loan defaults
}

// DaysOverdue is the whole number of days between due and now, never negative.
func (PenaltyPolicy) DaysOverdue(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(now.Sub(due) / (24 * time.Hour))
}

// LateFee accrues linearly on the installment total, rounded to whole FCFA.
func (p PenaltyPolicy) LateFee(installmentTotal int64, daysOverdue int) int64 {
	if p.LateFeeBpsPerDay <= 0 || daysOverdue <= 0 || installmentTotal <= 0 {
		return 0
	}
	fee := decimal.NewFromInt(installmentTotal).
		Mul(decimal.NewFromInt(p.LateFeeBpsPerDay)).
		Mul(decimal.NewFromInt(int64(daysOverdue))).
		Div(decimal.NewFromInt(10_000)).
		Round(0)
	return fee.IntPart()
}

// Defaulted reports whether an installment this far overdue pushes the loan
// into the terminal defaulted state.
func (p PenaltyPolicy) Defaulted(daysOverdue int) bool {
	return p.DefaultAfterDays > 0 && daysOverdue > p.DefaultAfterDays
}
