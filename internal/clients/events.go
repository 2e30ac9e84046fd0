package clients

import (
	"context"
	"fmt"

	ws "soro-core/internal/transport/websocket"

	"soro-core/internal/domain"
)

// EventClient pushes platform events over the websocket hub. Everything here
// is fire-and-forget: core operations never wait on delivery.
type EventClient struct {
	hub *ws.Hub
}

func NewEventClient(hub *ws.Hub) *EventClient {
	return &EventClient{
		hub: hub,
	}
}

func sfdChannel(sfdID string) string {
	return fmt.Sprintf("sfd#%s", sfdID)
}

func loanChannel(loanID string) string {
	return fmt.Sprintf("loan#%s", loanID)
}

func (c *EventClient) NotifyLoanStatusChanged(ctx context.Context, loan *domain.Loan, from domain.LoanStatus) error {
	if c == nil || c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"loan_id":   loan.ID,
		"client_id": loan.ClientID,
		"from":      from,
		"status":    loan.Status,
	}

	c.hub.Broadcast(sfdChannel(loan.SFDID), &ws.Message{Type: "loan_status_changed", Data: data})
	c.hub.Broadcast(loanChannel(loan.ID), &ws.Message{Type: "loan_status_changed", Data: data})
	return nil
}

func (c *EventClient) NotifyPaymentApplied(ctx context.Context, loan *domain.Loan, amount int64, transactionID string) error {
	if c == nil || c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"loan_id":        loan.ID,
		"amount":         amount,
		"transaction_id": transactionID,
	}

	c.hub.Broadcast(sfdChannel(loan.SFDID), &ws.Message{Type: "loan_payment_applied", Data: data})
	c.hub.Broadcast(loanChannel(loan.ID), &ws.Message{Type: "loan_payment_applied", Data: data})
	return nil
}

// NotifySubsidyLowBalance fires when a grant's remaining balance crosses the
// configured alert threshold.
func (c *EventClient) NotifySubsidyLowBalance(ctx context.Context, grant *domain.SubsidyGrant) error {
	if c == nil || c.hub == nil {
		return nil
	}

	c.hub.Broadcast(sfdChannel(grant.SFDID), &ws.Message{
		Type: "subsidy_low_balance",
		Data: map[string]interface{}{
			"subsidy_id": grant.ID,
			"amount":     grant.Amount,
			"remaining":  grant.Remaining(),
		},
	})
	return nil
}
