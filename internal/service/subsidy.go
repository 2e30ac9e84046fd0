package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"soro-core/internal/clients"
	"soro-core/internal/domain"
	"soro-core/internal/repository"
)

type SubsidyStore interface {
	Create(ctx context.Context, g *domain.SubsidyGrant) error
	GetByID(ctx context.Context, id string) (*domain.SubsidyGrant, error)
	GetActiveBySFD(ctx context.Context, sfdID string) (*domain.SubsidyGrant, error)
	ListUsage(ctx context.Context, subsidyID string) ([]domain.SubsidyUsage, error)
	RecordUsage(ctx context.Context, grant *domain.SubsidyGrant, usage *domain.SubsidyUsage) error
	UpdateStatus(ctx context.Context, g *domain.SubsidyGrant) error
}

// SubsidyService is the ledger over MEREF grants: every franc consumed by a
// disbursement is checked against the grant's remaining balance and recorded
// as an append-only usage entry, both inside one storage transaction.
type SubsidyService struct {
	grants SubsidyStore
	events *clients.EventClient

	// lowBalancePct fires a low-balance event when remaining falls below
	// this percentage of the granted amount. Zero disables the alert.
	lowBalancePct int
}

func NewSubsidyService(grants SubsidyStore, events *clients.EventClient, lowBalancePct int) *SubsidyService {
	return &SubsidyService{
		grants:        grants,
		events:        events,
		lowBalancePct: lowBalancePct,
	}
}

func (s *SubsidyService) Allocate(ctx context.Context, sfdID string, amount int64, actorID int64, endDate *time.Time) (*domain.SubsidyGrant, error) {
	if sfdID == "" {
		return nil, &domain.ValidationError{Field: "sfd_id", Message: "sfd_id is required"}
	}
	if amount <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	grant := &domain.SubsidyGrant{
		ID:          uuid.NewString(),
		SFDID:       sfdID,
		Amount:      amount,
		Status:      domain.SubsidyActive,
		AllocatedBy: actorID,
		AllocatedAt: time.Now(),
		EndDate:     endDate,
	}

	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// GrantView reports the grant with its recomputed remaining balance and the
// full usage ledger. remaining is never read from storage.
type GrantView struct {
	Grant     *domain.SubsidyGrant  `json:"grant"`
	Remaining int64                 `json:"remaining_amount"`
	Usage     []domain.SubsidyUsage `json:"usage"`
}

func (s *SubsidyService) Get(ctx context.Context, subsidyID string) (*GrantView, error) {
	grant, err := s.grants.GetByID(ctx, subsidyID)
	if err != nil {
		return nil, err
	}
	usage, err := s.grants.ListUsage(ctx, subsidyID)
	if err != nil {
		return nil, err
	}
	return &GrantView{Grant: grant, Remaining: grant.Remaining(), Usage: usage}, nil
}

// HasAvailableFunds recomputes the remaining balance from the current grant
// row. An inactive or expired grant has no available funds.
func (s *SubsidyService) HasAvailableFunds(ctx context.Context, subsidyID string, required int64) (bool, error) {
	grant, err := s.grants.GetByID(ctx, subsidyID)
	if err != nil {
		return false, err
	}
	if grant.Status != domain.SubsidyActive || grant.ExpiredAt(time.Now()) {
		return false, nil
	}
	return grant.Remaining() >= required, nil
}

// RecordUsage consumes grant funds for a loan. The balance check and the
// ledger write happen inside the repository's single transaction, and the
// whole operation retries a bounded number of times when a concurrent usage
// wins the row version.
func (s *SubsidyService) RecordUsage(ctx context.Context, subsidyID, loanID string, amount int64, notes string) (*domain.SubsidyUsage, error) {
	if amount <= 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if loanID == "" {
		return nil, &domain.ValidationError{Field: "loan_id", Message: "loan_id is required"}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		grant, err := s.grants.GetByID(ctx, subsidyID)
		if err != nil {
			return nil, err
		}

		if grant.Status != domain.SubsidyActive {
			return nil, &domain.GrantInactiveError{SubsidyID: subsidyID, Status: grant.Status}
		}
		if grant.ExpiredAt(time.Now()) {
			s.expire(ctx, grant)
			return nil, &domain.GrantInactiveError{SubsidyID: subsidyID, Status: domain.SubsidyExpired}
		}
		if grant.Remaining() < amount {
			return nil, &domain.InsufficientFundsError{
				SubsidyID: subsidyID,
				Available: grant.Remaining(),
				Requested: amount,
			}
		}

		usage := &domain.SubsidyUsage{
			ID:        uuid.NewString(),
			SubsidyID: subsidyID,
			LoanID:    loanID,
			Amount:    amount,
			UsedAt:    time.Now(),
			Notes:     notes,
		}

		err = s.grants.RecordUsage(ctx, grant, usage)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.checkLowBalance(ctx, grant)
		return usage, nil
	}

	return nil, &domain.ConcurrentModificationError{Resource: "subsidy", ID: subsidyID, Attempts: maxAttempts}
}

// PrepareFunding resolves the SFD's active grant and stages the ledger entry
// for a disbursement draw. Nothing is written here: the disbursement
// transaction commits the draw, and its guarded UPDATE re-asserts the status
// and balance invariants at commit time.
func (s *SubsidyService) PrepareFunding(ctx context.Context, sfdID, loanID string, amount int64, notes string) (*domain.SubsidyGrant, *domain.SubsidyUsage, error) {
	grant, err := s.grants.GetActiveBySFD(ctx, sfdID)
	if err != nil {
		return nil, nil, err
	}
	if grant.ExpiredAt(time.Now()) {
		s.expire(ctx, grant)
		return nil, nil, &domain.GrantInactiveError{SubsidyID: grant.ID, Status: domain.SubsidyExpired}
	}
	if grant.Remaining() < amount {
		return nil, nil, &domain.InsufficientFundsError{
			SubsidyID: grant.ID,
			Available: grant.Remaining(),
			Requested: amount,
		}
	}

	usage := &domain.SubsidyUsage{
		ID:        uuid.NewString(),
		SubsidyID: grant.ID,
		LoanID:    loanID,
		Amount:    amount,
		UsedAt:    time.Now(),
		Notes:     notes,
	}
	return grant, usage, nil
}

// FundingCommitted runs the post-commit bookkeeping for a prepared draw the
// disbursement transaction has durably applied.
func (s *SubsidyService) FundingCommitted(ctx context.Context, grant *domain.SubsidyGrant) {
	s.checkLowBalance(ctx, grant)
}

// Revoke deactivates a grant. The version guard makes revocation lose
// against any in-flight usage, so a revoked grant can never end up with
// more consumption than its balance covered.
func (s *SubsidyService) Revoke(ctx context.Context, subsidyID string, actorID int64) (*domain.SubsidyGrant, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		grant, err := s.grants.GetByID(ctx, subsidyID)
		if err != nil {
			return nil, err
		}
		if grant.Status != domain.SubsidyActive {
			return nil, &domain.GrantInactiveError{SubsidyID: subsidyID, Status: grant.Status}
		}

		grant.Status = domain.SubsidyRevoked
		grant.RevokedBy = &actorID
		err = s.grants.UpdateStatus(ctx, grant)
		if err == repository.ErrVersionConflict {
			continue
		}
		if err != nil {
			return nil, err
		}
		return grant, nil
	}

	return nil, &domain.ConcurrentModificationError{Resource: "subsidy", ID: subsidyID, Attempts: maxAttempts}
}

func (s *SubsidyService) expire(ctx context.Context, grant *domain.SubsidyGrant) {
	grant.Status = domain.SubsidyExpired
	if err := s.grants.UpdateStatus(ctx, grant); err != nil {
		log.Printf("subsidy %s expiry write: %v", grant.ID, err)
	}
}

func (s *SubsidyService) checkLowBalance(ctx context.Context, grant *domain.SubsidyGrant) {
	if s.lowBalancePct <= 0 {
		return
	}
	if grant.Remaining()*100 <= grant.Amount*int64(s.lowBalancePct) {
		_ = s.events.NotifySubsidyLowBalance(ctx, grant)
	}
}
