package domain

import "time"

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusDisbursed LoanStatus = "disbursed"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
	LoanStatusLate      LoanStatus = "late"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

// Terminal reports whether no further transitions are allowed from s.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusRejected || s == LoanStatusCompleted || s == LoanStatusDefaulted
}

// Loan amounts are whole FCFA (the currency has no minor unit).
type Loan struct {
	ID             string     `json:"id"`
	ClientID       string     `json:"client_id"`
	SFDID          string     `json:"sfd_id"`
	Amount         int64      `json:"amount"`
	DurationMonths int        `json:"duration_months"`
	InterestRate   float64    `json:"interest_rate"` // annual percent, declining balance
	MonthlyPayment int64      `json:"monthly_payment"`
	Purpose        string     `json:"purpose"`
	Status         LoanStatus `json:"status"`

	ApprovedAt *time.Time `json:"approved_at"`
	ApprovedBy *int64     `json:"approved_by"`

	DisbursedAt     *time.Time `json:"disbursed_at"`
	NextPaymentDate *time.Time `json:"next_payment_date"`
	LastPaymentDate *time.Time `json:"last_payment_date"`

	SubsidyAmount int64   `json:"subsidy_amount"`
	SubsidyRate   float64 `json:"subsidy_rate"`

	RejectionNotes *string `json:"rejection_notes"`

	CreatedAt  time.Time `json:"created_at"`
	RowVersion int64     `json:"-"`
}
