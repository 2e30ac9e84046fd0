package domain

import "time"

type InstallmentStatus string

const (
	InstallmentPending       InstallmentStatus = "pending"
	InstallmentPaid          InstallmentStatus = "paid"
	InstallmentOverdue       InstallmentStatus = "overdue"
	InstallmentPartiallyPaid InstallmentStatus = "partially_paid"
)

// ScheduleInstallment is one row of a loan's repayment schedule. Rows are
// created in bulk at disbursement and only ever mutated, never deleted.
type ScheduleInstallment struct {
	ID                string    `json:"id,omitempty"`
	LoanID            string    `json:"loan_id,omitempty"`
	InstallmentNumber int       `json:"installment_number"` // 1..N, unique per loan
	DueDate           time.Time `json:"due_date"`

	PrincipalAmount    int64 `json:"principal_amount"`
	InterestAmount     int64 `json:"interest_amount"`
	TotalAmount        int64 `json:"total_amount"`        // principal + interest for the period
	RemainingPrincipal int64 `json:"remaining_principal"` // balance after this installment, if paid on time

	Status     InstallmentStatus `json:"status"`
	PaidAmount int64             `json:"paid_amount"`
	PaidAt     *time.Time        `json:"paid_at"`

	LateFee     int64 `json:"late_fee"`
	DaysOverdue int   `json:"days_overdue"`

	RowVersion int64 `json:"-"`
}

// Outstanding returns what is still owed on the installment, late fee included.
func (si ScheduleInstallment) Outstanding() int64 {
	if si.Status == InstallmentPaid {
		return 0
	}
	return si.TotalAmount - si.PaidAmount + si.LateFee
}
