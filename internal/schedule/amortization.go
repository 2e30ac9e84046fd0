package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"soro-core/internal/domain"
)

var one = decimal.NewFromInt(1)

// Quote is the result of computing a repayment schedule for a loan offer.
// Amounts are whole FCFA.
type Quote struct {
	MonthlyPayment int64                        `json:"monthly_payment"`
	TotalRepayment int64                        `json:"total_repayment"`
	TotalInterest  int64                        `json:"total_interest"`
	Installments   []domain.ScheduleInstallment `json:"schedule"`
}

// Compute builds a fixed-payment (annuity) amortization schedule.
//
//	r       = annualRatePercent / 100 / 12
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// With r == 0 the principal is split linearly. The monthly payment and each
// period's interest round half-up to whole FCFA; the final period absorbs
// rounding drift so the remaining balance lands exactly on zero. Due dates
// fall one calendar month apart starting one month after startDate.
func Compute(principal int64, annualRatePercent float64, months int, startDate time.Time) (*Quote, error) {
	if principal <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "principal must be positive"}
	}
	if months <= 0 {
		return nil, &domain.ValidationError{Field: "duration_months", Message: "duration must be positive"}
	}
	if annualRatePercent < 0 {
		return nil, &domain.ValidationError{Field: "interest_rate", Message: "interest rate cannot be negative"}
	}

	p := decimal.NewFromInt(principal)
	r := decimal.NewFromFloat(annualRatePercent).Div(decimal.NewFromInt(1200))

	var payment decimal.Decimal
	if r.IsZero() {
		payment = p.Div(decimal.NewFromInt(int64(months))).Round(0)
	} else {
		pow := one.Add(r).Pow(decimal.NewFromInt(int64(months)))
		payment = p.Mul(r).Mul(pow).Div(pow.Sub(one)).Round(0)
	}

	q := &Quote{
		MonthlyPayment: payment.IntPart(),
		Installments:   make([]domain.ScheduleInstallment, 0, months),
	}

	remaining := p
	for i := 1; i <= months && remaining.IsPositive(); i++ {
		interest := remaining.Mul(r).Round(0)
		principalPart := payment.Sub(interest)
		// Final period, or rounding drift pushed the part past the balance:
		// take exactly what is left.
		if i == months || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		remaining = remaining.Sub(principalPart)

		total := principalPart.Add(interest)
		q.Installments = append(q.Installments, domain.ScheduleInstallment{
			InstallmentNumber:  i,
			DueDate:            startDate.AddDate(0, i, 0),
			PrincipalAmount:    principalPart.IntPart(),
			InterestAmount:     interest.IntPart(),
			TotalAmount:        total.IntPart(),
			RemainingPrincipal: remaining.IntPart(),
			Status:             domain.InstallmentPending,
		})

		q.TotalRepayment += total.IntPart()
		q.TotalInterest += interest.IntPart()
	}

	return q, nil
}
