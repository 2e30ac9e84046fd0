package service

import (
	"context"
	"sort"
	"sync"

	"soro-core/internal/domain"
	"soro-core/internal/repository"
)

// fakeStore is an in-memory stand-in for the repositories. Mutating calls
// honor the same row-version compare-and-swap contract as the SQL layer, and
// ApplyAllocation and Disburse commit all-or-nothing under one lock, so
// concurrency tests exercise the real retry paths.
type fakeStore struct {
	mu sync.Mutex

	loans        map[string]domain.Loan
	installments map[string]domain.ScheduleInstallment
	payments     map[string]domain.LoanPayment // keyed by transaction id
	grants       map[string]domain.SubsidyGrant
	usage        []domain.SubsidyUsage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		loans:        make(map[string]domain.Loan),
		installments: make(map[string]domain.ScheduleInstallment),
		payments:     make(map[string]domain.LoanPayment),
		grants:       make(map[string]domain.SubsidyGrant),
	}
}

// LoanStore

func (f *fakeStore) Create(ctx context.Context, l *domain.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.RowVersion = 1
	f.loans[l.ID] = *l
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.loans[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "loan", ID: id}
	}
	cp := l
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, l *domain.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateLoanLocked(l)
}

func (f *fakeStore) updateLoanLocked(l *domain.Loan) error {
	stored, ok := f.loans[l.ID]
	if !ok || stored.RowVersion != l.RowVersion {
		return repository.ErrVersionConflict
	}
	l.RowVersion++
	f.loans[l.ID] = *l
	return nil
}

// Disburse mirrors the SQL repository's single-transaction contract: every
// guard is checked before any write, so a losing call leaves no trace.
func (f *fakeStore) Disburse(ctx context.Context, l *domain.Loan, rows []domain.ScheduleInstallment, grant *domain.SubsidyGrant, usage *domain.SubsidyUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.loans[l.ID]
	if !ok || stored.RowVersion != l.RowVersion {
		return repository.ErrVersionConflict
	}
	if grant != nil {
		g, ok := f.grants[grant.ID]
		if !ok || g.RowVersion != grant.RowVersion {
			return repository.ErrVersionConflict
		}
		if g.Status != domain.SubsidyActive || g.UsedAmount+usage.Amount > g.Amount {
			return repository.ErrVersionConflict
		}

		g.UsedAmount += usage.Amount
		g.RowVersion++
		f.grants[grant.ID] = g
		f.usage = append(f.usage, *usage)
		grant.UsedAmount = g.UsedAmount
		grant.RowVersion = g.RowVersion
	}

	l.RowVersion++
	f.loans[l.ID] = *l
	for _, row := range rows {
		row.RowVersion = 1
		f.installments[row.ID] = row
	}
	return nil
}

func (f *fakeStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, l := range f.loans {
		if l.Status == domain.LoanStatusActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// InstallmentStore

// seedInstallments loads pre-built schedule rows for fixtures.
func (f *fakeStore) seedInstallments(ctx context.Context, rows []domain.ScheduleInstallment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		row.RowVersion = 1
		f.installments[row.ID] = row
	}
	return nil
}

func (f *fakeStore) ListByLoan(ctx context.Context, loanID string) ([]domain.ScheduleInstallment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listLocked(loanID, false), nil
}

func (f *fakeStore) ListOutstanding(ctx context.Context, loanID string) ([]domain.ScheduleInstallment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listLocked(loanID, true), nil
}

func (f *fakeStore) listLocked(loanID string, outstandingOnly bool) []domain.ScheduleInstallment {
	var out []domain.ScheduleInstallment
	for _, row := range f.installments {
		if row.LoanID != loanID {
			continue
		}
		if outstandingOnly && row.Status == domain.InstallmentPaid {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InstallmentNumber != out[j].InstallmentNumber {
			return out[i].InstallmentNumber < out[j].InstallmentNumber
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

func (f *fakeStore) UpdateBatch(ctx context.Context, rows []domain.ScheduleInstallment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateInstallmentsLocked(rows)
}

func (f *fakeStore) updateInstallmentsLocked(rows []domain.ScheduleInstallment) error {
	for _, row := range rows {
		stored, ok := f.installments[row.ID]
		if !ok || stored.RowVersion != row.RowVersion {
			return repository.ErrVersionConflict
		}
	}
	for _, row := range rows {
		row.RowVersion++
		f.installments[row.ID] = row
	}
	return nil
}

// PaymentStore

func (f *fakeStore) GetByTransactionID(ctx context.Context, transactionID string) (*domain.LoanPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[transactionID]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "payment", ID: transactionID}
	}
	cp := p
	return &cp, nil
}

func (f *fakeStore) ListPaymentsByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LoanPayment
	for _, p := range f.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	return out, nil
}

func (f *fakeStore) ApplyAllocation(ctx context.Context, payment *domain.LoanPayment, installments []domain.ScheduleInstallment, loan *domain.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.payments[payment.TransactionID]; exists {
		return repository.ErrDuplicateTransaction
	}
	if err := f.updateInstallmentsLocked(installments); err != nil {
		return err
	}
	if err := f.updateLoanLocked(loan); err != nil {
		return err
	}
	f.payments[payment.TransactionID] = *payment
	return nil
}

// SubsidyStore

func (f *fakeStore) CreateGrant(ctx context.Context, g *domain.SubsidyGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.RowVersion = 1
	f.grants[g.ID] = *g
	return nil
}

func (f *fakeStore) GetGrantByID(ctx context.Context, id string) (*domain.SubsidyGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "subsidy", ID: id}
	}
	cp := g
	return &cp, nil
}

func (f *fakeStore) GetActiveBySFD(ctx context.Context, sfdID string) (*domain.SubsidyGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var (
		found *domain.SubsidyGrant
	)
	for _, g := range f.grants {
		if g.SFDID != sfdID || g.Status != domain.SubsidyActive {
			continue
		}
		if found == nil || g.AllocatedAt.Before(found.AllocatedAt) {
			cp := g
			found = &cp
		}
	}
	if found == nil {
		return nil, &domain.NotFoundError{Resource: "subsidy", ID: sfdID}
	}
	return found, nil
}

func (f *fakeStore) ListUsage(ctx context.Context, subsidyID string) ([]domain.SubsidyUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SubsidyUsage
	for _, u := range f.usage {
		if u.SubsidyID == subsidyID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) RecordUsage(ctx context.Context, grant *domain.SubsidyGrant, usage *domain.SubsidyUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.grants[grant.ID]
	if !ok || stored.RowVersion != grant.RowVersion {
		return repository.ErrVersionConflict
	}
	if stored.Status != domain.SubsidyActive || stored.UsedAmount+usage.Amount > stored.Amount {
		return repository.ErrVersionConflict
	}

	stored.UsedAmount += usage.Amount
	stored.RowVersion++
	f.grants[grant.ID] = stored
	f.usage = append(f.usage, *usage)

	grant.UsedAmount = stored.UsedAmount
	grant.RowVersion = stored.RowVersion
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, g *domain.SubsidyGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.grants[g.ID]
	if !ok || stored.RowVersion != g.RowVersion {
		return repository.ErrVersionConflict
	}
	stored.Status = g.Status
	stored.RevokedBy = g.RevokedBy
	stored.RowVersion++
	f.grants[g.ID] = stored
	g.RowVersion = stored.RowVersion
	return nil
}

// paymentStoreAdapter exposes the payment methods under the PaymentStore
// interface, whose ListByLoan name collides with the installment one.
type paymentStoreAdapter struct {
	*fakeStore
}

func (a paymentStoreAdapter) ListByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	return a.ListPaymentsByLoan(ctx, loanID)
}

// subsidyStoreAdapter exposes the grant methods under the SubsidyStore
// interface, whose Create/GetByID names collide with the loan ones.
type subsidyStoreAdapter struct {
	*fakeStore
}

func (a subsidyStoreAdapter) Create(ctx context.Context, g *domain.SubsidyGrant) error {
	return a.CreateGrant(ctx, g)
}

func (a subsidyStoreAdapter) GetByID(ctx context.Context, id string) (*domain.SubsidyGrant, error) {
	return a.GetGrantByID(ctx, id)
}
