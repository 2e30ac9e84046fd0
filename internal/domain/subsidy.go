package domain

import "time"

type SubsidyStatus string

const (
	SubsidyActive  SubsidyStatus = "active"
	SubsidyRevoked SubsidyStatus = "revoked"
	SubsidyExpired SubsidyStatus = "expired"
)

// SubsidyGrant is MEREF funding allocated to one SFD. remaining_amount is
// never stored: it is always recomputed from amount and used_amount.
type SubsidyGrant struct {
	ID         string        `json:"id"`
	SFDID      string        `json:"sfd_id"`
	Amount     int64         `json:"amount"`
	UsedAmount int64         `json:"used_amount"`
	Status     SubsidyStatus `json:"status"`

	AllocatedBy int64      `json:"allocated_by"`
	AllocatedAt time.Time  `json:"allocated_at"`
	EndDate     *time.Time `json:"end_date"`
	RevokedBy   *int64     `json:"revoked_by"`

	RowVersion int64 `json:"-"`
}

func (g SubsidyGrant) Remaining() int64 {
	return g.Amount - g.UsedAmount
}

// ExpiredAt reports whether the grant's end date has passed at ref time.
func (g SubsidyGrant) ExpiredAt(ref time.Time) bool {
	return g.EndDate != nil && g.EndDate.Before(ref)
}

// SubsidyUsage is an append-only ledger entry tying grant consumption to a
// loan. The sum of Amount per subsidy must equal the grant's UsedAmount.
type SubsidyUsage struct {
	ID        string    `json:"id"`
	SubsidyID string    `json:"subsidy_id"`
	LoanID    string    `json:"loan_id"`
	Amount    int64     `json:"amount"`
	UsedAt    time.Time `json:"used_at"`
	Notes     string    `json:"notes"`
}
