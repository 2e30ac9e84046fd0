package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"soro-core/internal/clients"
	"soro-core/internal/domain"
	"soro-core/internal/repository"
	"soro-core/internal/schedule"
)

type LoanStore interface {
	Create(ctx context.Context, l *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	Update(ctx context.Context, l *domain.Loan) error
	Disburse(ctx context.Context, l *domain.Loan, installments []domain.ScheduleInstallment, grant *domain.SubsidyGrant, usage *domain.SubsidyUsage) error
	ListActiveIDs(ctx context.Context) ([]string, error)
}

type InstallmentStore interface {
	ListByLoan(ctx context.Context, loanID string) ([]domain.ScheduleInstallment, error)
	ListOutstanding(ctx context.Context, loanID string) ([]domain.ScheduleInstallment, error)
	UpdateBatch(ctx context.Context, rows []domain.ScheduleInstallment) error
}

// GrantFunder is the slice of the subsidy ledger the disbursement path needs:
// staging a draw before the disbursement transaction, and post-commit
// bookkeeping after it.
type GrantFunder interface {
	PrepareFunding(ctx context.Context, sfdID, loanID string, amount int64, notes string) (*domain.SubsidyGrant, *domain.SubsidyUsage, error)
	FundingCommitted(ctx context.Context, grant *domain.SubsidyGrant)
}

const scheduleCacheTTL = time.Minute

type LoanService struct {
	loans        LoanStore
	installments InstallmentStore
	subsidies    GrantFunder
	policy       schedule.PenaltyPolicy

	redis   *clients.RedisClient
	events  *clients.EventClient
	archive *clients.ScheduleArchive
}

func NewLoanService(
	loans LoanStore,
	installments InstallmentStore,
	subsidies GrantFunder,
	policy schedule.PenaltyPolicy,
	redis *clients.RedisClient,
	events *clients.EventClient,
	archive *clients.ScheduleArchive,
) *LoanService {
	return &LoanService{
		loans:        loans,
		installments: installments,
		subsidies:    subsidies,
		policy:       policy,
		redis:        redis,
		events:       events,
		archive:      archive,
	}
}

type CreateLoanInput struct {
	ClientID       string
	SFDID          string
	Amount         int64
	DurationMonths int
	InterestRate   float64
	Purpose        string
	SubsidyAmount  int64
	SubsidyRate    float64
}

func (s *LoanService) CreateApplication(ctx context.Context, in CreateLoanInput) (*domain.Loan, error) {
	switch {
	case in.ClientID == "":
		return nil, &domain.ValidationError{Field: "client_id", Message: "client_id is required"}
	case in.SFDID == "":
		return nil, &domain.ValidationError{Field: "sfd_id", Message: "sfd_id is required"}
	case in.Amount <= 0:
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be positive"}
	case in.DurationMonths <= 0:
		return nil, &domain.ValidationError{Field: "duration_months", Message: "duration must be positive"}
	case in.InterestRate < 0:
		return nil, &domain.ValidationError{Field: "interest_rate", Message: "interest rate cannot be negative"}
	case in.SubsidyAmount < 0:
		return nil, &domain.ValidationError{Field: "subsidy_amount", Message: "subsidy amount cannot be negative"}
	}

	loan := &domain.Loan{
		ID:             uuid.NewString(),
		ClientID:       in.ClientID,
		SFDID:          in.SFDID,
		Amount:         in.Amount,
		DurationMonths: in.DurationMonths,
		InterestRate:   in.InterestRate,
		Purpose:        in.Purpose,
		Status:         domain.LoanStatusPending,
		SubsidyAmount:  in.SubsidyAmount,
		SubsidyRate:    in.SubsidyRate,
		CreatedAt:      time.Now(),
	}

	if err := s.loans.Create(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *LoanService) Get(ctx context.Context, id string) (*domain.Loan, error) {
	return s.loans.GetByID(ctx, id)
}

// LoanView is a loan plus its derived display status and schedule summary.
type LoanView struct {
	Loan          *domain.Loan      `json:"loan"`
	DisplayStatus domain.LoanStatus `json:"display_status"`
	Summary       schedule.Summary  `json:"summary"`
}

func (s *LoanService) GetView(ctx context.Context, id string) (*LoanView, error) {
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.installments.ListByLoan(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := schedule.Summarize(rows)
	display := DeriveDisplayStatus(loan.Status, summary)
	// Rows past due that the sweep has not marked yet still count as late
	// for display.
	if display == domain.LoanStatusActive && schedule.CountPastDue(rows, time.Now()) > 0 {
		display = domain.LoanStatusLate
	}
	return &LoanView{
		Loan:          loan,
		DisplayStatus: display,
		Summary:       summary,
	}, nil
}

// ScheduleView is the cacheable read model behind GET /loans/{id}/schedule.
type ScheduleView struct {
	LoanID       string                       `json:"loan_id"`
	Installments []domain.ScheduleInstallment `json:"installments"`
	Summary      schedule.Summary             `json:"summary"`
}

func scheduleCacheKey(loanID string) string {
	return "loan:" + loanID + ":schedule"
}

func (s *LoanService) GetSchedule(ctx context.Context, loanID string) (*ScheduleView, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, scheduleCacheKey(loanID)); err == nil {
			var view ScheduleView
			if err := json.Unmarshal([]byte(cached), &view); err == nil {
				return &view, nil
			}
		}
	}

	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, err
	}

	rows, err := s.installments.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	view := &ScheduleView{
		LoanID:       loanID,
		Installments: rows,
		Summary:      schedule.Summarize(rows),
	}

	if s.redis != nil {
		if data, err := json.Marshal(view); err == nil {
			if err := s.redis.Set(ctx, scheduleCacheKey(loanID), string(data), scheduleCacheTTL); err != nil {
				log.Printf("schedule cache write for loan %s: %v", loanID, err)
			}
		}
	}

	return view, nil
}

func (s *LoanService) invalidateScheduleCache(ctx context.Context, loanID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, scheduleCacheKey(loanID)); err != nil {
		log.Printf("schedule cache invalidation for loan %s: %v", loanID, err)
	}
}

// Approve moves a pending application to approved under the given actor.
func (s *LoanService) Approve(ctx context.Context, loanID string, actorID int64) (*domain.Loan, error) {
	return s.transition(ctx, loanID, domain.LoanStatusApproved, func(loan *domain.Loan) {
		now := time.Now()
		loan.ApprovedAt = &now
		loan.ApprovedBy = &actorID
	})
}

// Reject terminates a pre-disbursement application.
func (s *LoanService) Reject(ctx context.Context, loanID string, actorID int64, notes string) (*domain.Loan, error) {
	return s.transition(ctx, loanID, domain.LoanStatusRejected, func(loan *domain.Loan) {
		if notes != "" {
			loan.RejectionNotes = &notes
		}
	})
}

// transition applies one guarded status change with bounded optimistic
// retries. mutate runs after the guard passes, before the write.
func (s *LoanService) transition(
	ctx context.Context,
	loanID string,
	to domain.LoanStatus,
	mutate func(*domain.Loan),
) (*domain.Loan, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		loan, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return nil, err
		}

		from := loan.Status
		if err := checkTransition(loanID, from, to); err != nil {
			return nil, err
		}

		loan.Status = to
		if mutate != nil {
			mutate(loan)
		}

		err = s.loans.Update(ctx, loan)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, err
		}

		_ = s.events.NotifyLoanStatusChanged(ctx, loan, from)
		return loan, nil
	}
	return nil, &domain.ConcurrentModificationError{Resource: "loan", ID: loanID, Attempts: maxAttempts}
}

// Disburse releases an approved loan: it draws the subsidy share from the
// SFD's active grant, materializes the repayment schedule and activates the
// loan, all committed as one repository transaction — a disbursement that
// loses the race or fails partway leaves no grant draw and no schedule rows
// behind. Disbursement itself activates.
func (s *LoanService) Disburse(ctx context.Context, loanID string, actorID int64) (*domain.Loan, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		loan, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return nil, err
		}

		if err := checkTransition(loanID, loan.Status, domain.LoanStatusDisbursed); err != nil {
			return nil, err
		}

		var (
			grant *domain.SubsidyGrant
			usage *domain.SubsidyUsage
		)
		if loan.SubsidyAmount > 0 {
			if s.subsidies == nil {
				return nil, &domain.ValidationError{Field: "subsidy_amount", Message: "no subsidy ledger configured"}
			}
			grant, usage, err = s.subsidies.PrepareFunding(ctx, loan.SFDID, loan.ID, loan.SubsidyAmount, "loan disbursement")
			if err != nil {
				return nil, err
			}
		}

		now := time.Now()
		quote, err := schedule.Compute(loan.Amount, loan.InterestRate, loan.DurationMonths, now)
		if err != nil {
			return nil, err
		}

		rows := quote.Installments
		for i := range rows {
			rows[i].ID = uuid.NewString()
			rows[i].LoanID = loan.ID
		}

		firstDue := rows[0].DueDate
		loan.MonthlyPayment = quote.MonthlyPayment
		loan.DisbursedAt = &now
		loan.NextPaymentDate = &firstDue
		loan.Status = domain.LoanStatusActive

		err = s.loans.Disburse(ctx, loan, rows, grant, usage)
		if err == repository.ErrVersionConflict {
			// Either the loan row or the grant moved underneath us;
			// re-read both and retry.
			continue
		}
		if err != nil {
			return nil, err
		}

		if grant != nil {
			s.subsidies.FundingCommitted(ctx, grant)
		}
		s.archiveSnapshot(ctx, loan, quote)
		s.invalidateScheduleCache(ctx, loanID)

		// The disbursed state is transient: activation follows immediately,
		// but both transitions are announced.
		disbursed := *loan
		disbursed.Status = domain.LoanStatusDisbursed
		_ = s.events.NotifyLoanStatusChanged(ctx, &disbursed, domain.LoanStatusApproved)
		_ = s.events.NotifyLoanStatusChanged(ctx, loan, domain.LoanStatusDisbursed)

		return loan, nil
	}
	return nil, &domain.ConcurrentModificationError{Resource: "loan", ID: loanID, Attempts: maxAttempts}
}

func (s *LoanService) archiveSnapshot(ctx context.Context, loan *domain.Loan, quote *schedule.Quote) {
	if s.archive == nil {
		return
	}
	data, err := json.Marshal(quote)
	if err != nil {
		log.Printf("schedule snapshot marshal for loan %s: %v", loan.ID, err)
		return
	}
	if _, err := s.archive.SaveSnapshot(ctx, loan.ID, data); err != nil {
		// The snapshot is an audit artifact; losing one never blocks disbursement.
		log.Printf("schedule snapshot upload for loan %s: %v", loan.ID, err)
	}
}

// RefreshOverdue re-evaluates a loan's outstanding installments against the
// penalty policy: rows past due go overdue, fees and day counts refresh, and
// a breach of the default threshold terminates the loan.
func (s *LoanService) RefreshOverdue(ctx context.Context, loanID string, now time.Time) error {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != domain.LoanStatusActive {
		return nil
	}

	rows, err := s.installments.ListOutstanding(ctx, loanID)
	if err != nil {
		return err
	}

	var (
		changed   []domain.ScheduleInstallment
		defaulted bool
	)
	for _, row := range rows {
		days := s.policy.DaysOverdue(row.DueDate, now)
		if days == 0 {
			continue
		}
		if s.policy.Defaulted(days) {
			defaulted = true
		}

		fee := s.policy.LateFee(row.TotalAmount, days)
		status := row.Status
		if status == domain.InstallmentPending {
			status = domain.InstallmentOverdue
		}
		if status == row.Status && days == row.DaysOverdue && fee == row.LateFee {
			continue
		}

		row.Status = status
		row.DaysOverdue = days
		row.LateFee = fee
		changed = append(changed, row)
	}

	if len(changed) > 0 {
		if err := s.installments.UpdateBatch(ctx, changed); err != nil {
			return err
		}
		s.invalidateScheduleCache(ctx, loanID)
	}

	if defaulted {
		if _, err := s.transition(ctx, loanID, domain.LoanStatusDefaulted, nil); err != nil {
			return err
		}
	}

	return nil
}

// RefreshAllOverdue sweeps every active loan; used by the periodic ticker.
func (s *LoanService) RefreshAllOverdue(ctx context.Context, now time.Time) error {
	ids, err := s.loans.ListActiveIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.RefreshOverdue(ctx, id, now); err != nil {
			log.Printf("overdue refresh for loan %s: %v", id, err)
		}
	}
	return nil
}
