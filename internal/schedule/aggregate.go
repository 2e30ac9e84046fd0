package schedule

import (
	"math"
	"time"

	"soro-core/internal/domain"
)

// Summary is a read-side projection over one loan's installment rows. It is
// derived from a plain slice and carries no state of its own: summarizing the
// same rows twice yields the same result.
type Summary struct {
	TotalInstallments int `json:"total_installments"`
	Paid              int `json:"paid"`
	Overdue           int `json:"overdue"`
	PartiallyPaid     int `json:"partially_paid"`
	Pending           int `json:"pending"`

	NextDue *domain.ScheduleInstallment `json:"next_due,omitempty"`

	ProgressPercentage int   `json:"progress_percentage"`
	TotalPaid          int64 `json:"total_paid"`
	TotalRemaining     int64 `json:"total_remaining"`
	TotalLateFees      int64 `json:"total_late_fees"`
}

// Summarize never mutates installments.
func Summarize(installments []domain.ScheduleInstallment) Summary {
	s := Summary{TotalInstallments: len(installments)}

	for i := range installments {
		row := installments[i]

		switch row.Status {
		case domain.InstallmentPaid:
			s.Paid++
		case domain.InstallmentOverdue:
			s.Overdue++
		case domain.InstallmentPartiallyPaid:
			s.PartiallyPaid++
		default:
			s.Pending++
		}

		s.TotalPaid += row.PaidAmount
		s.TotalLateFees += row.LateFee
		s.TotalRemaining += row.Outstanding()

		if row.Status == domain.InstallmentPending || row.Status == domain.InstallmentPartiallyPaid {
			if s.NextDue == nil || earlier(row, *s.NextDue) {
				next := row
				s.NextDue = &next
			}
		}
	}

	if s.TotalInstallments > 0 {
		s.ProgressPercentage = int(math.Round(float64(s.Paid) / float64(s.TotalInstallments) * 100))
	}

	return s
}

// CountPastDue reports how many unpaid installments are past due at ref time,
// whether or not the overdue sweep has marked them yet. Read paths use it so
// a loan shows late between sweeps.
func CountPastDue(installments []domain.ScheduleInstallment, ref time.Time) int {
	n := 0
	for i := range installments {
		row := installments[i]
		if row.Status == domain.InstallmentPaid {
			continue
		}
		if row.DueDate.Before(ref) {
			n++
		}
	}
	return n
}

// earlier orders by installment number, then by due date.
func earlier(a, b domain.ScheduleInstallment) bool {
	if a.InstallmentNumber != b.InstallmentNumber {
		return a.InstallmentNumber < b.InstallmentNumber
	}
	return a.DueDate.Before(b.DueDate)
}
