package domain

import "time"

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// LoanPayment is an append-only record of one incoming payment event.
// TransactionID is the external payment reference and doubles as the
// idempotency key: re-submitting the same reference never applies twice.
type LoanPayment struct {
	ID            string        `json:"id"`
	LoanID        string        `json:"loan_id"`
	Amount        int64         `json:"amount"`
	ExcessAmount  int64         `json:"excess_amount"` // overpayment carried per policy, zero when rejected
	Method        string        `json:"payment_method"`
	Status        PaymentStatus `json:"status"`
	PaymentDate   time.Time     `json:"payment_date"`
	TransactionID string        `json:"transaction_id"`
}
