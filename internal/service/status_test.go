package service

import (
	"testing"

	"soro-core/internal/domain"
	"soro-core/internal/schedule"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.LoanStatus
		want     bool
	}{
		{domain.LoanStatusPending, domain.LoanStatusApproved, true},
		{domain.LoanStatusPending, domain.LoanStatusRejected, true},
		{domain.LoanStatusApproved, domain.LoanStatusDisbursed, true},
		{domain.LoanStatusApproved, domain.LoanStatusRejected, true},
		{domain.LoanStatusDisbursed, domain.LoanStatusActive, true},
		{domain.LoanStatusActive, domain.LoanStatusCompleted, true},
		{domain.LoanStatusActive, domain.LoanStatusDefaulted, true},

		{domain.LoanStatusPending, domain.LoanStatusDisbursed, false},
		{domain.LoanStatusPending, domain.LoanStatusActive, false},
		{domain.LoanStatusActive, domain.LoanStatusRejected, false},
		{domain.LoanStatusRejected, domain.LoanStatusApproved, false},
		{domain.LoanStatusRejected, domain.LoanStatusPending, false},
		{domain.LoanStatusCompleted, domain.LoanStatusActive, false},
		{domain.LoanStatusDefaulted, domain.LoanStatusActive, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v; want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []domain.LoanStatus{domain.LoanStatusRejected, domain.LoanStatusCompleted, domain.LoanStatusDefaulted}
	for _, st := range terminal {
		if !st.Terminal() {
			t.Fatalf("%s should be terminal", st)
		}
		if len(allowedTransitions[st]) != 0 {
			t.Fatalf("%s must allow no transitions", st)
		}
	}
}

func TestDeriveDisplayStatus(t *testing.T) {
	overdue := schedule.Summary{TotalInstallments: 3, Overdue: 1}
	clear := schedule.Summary{TotalInstallments: 3, Paid: 1, Pending: 2}

	if got := DeriveDisplayStatus(domain.LoanStatusActive, overdue); got != domain.LoanStatusLate {
		t.Fatalf("active with overdue rows should display late; got %s", got)
	}
	if got := DeriveDisplayStatus(domain.LoanStatusActive, clear); got != domain.LoanStatusActive {
		t.Fatalf("active with no overdue rows should display active; got %s", got)
	}
	// late never shadows a non-active stored status
	if got := DeriveDisplayStatus(domain.LoanStatusDefaulted, overdue); got != domain.LoanStatusDefaulted {
		t.Fatalf("defaulted must display defaulted; got %s", got)
	}
	if got := DeriveDisplayStatus(domain.LoanStatusPending, clear); got != domain.LoanStatusPending {
		t.Fatalf("pending must display pending; got %s", got)
	}
}
