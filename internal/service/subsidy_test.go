package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"soro-core/internal/domain"
)

func newSubsidyService(store *fakeStore) *SubsidyService {
	return NewSubsidyService(subsidyStoreAdapter{store}, nil, 0)
}

func TestHasAvailableFunds(t *testing.T) {
	store := newFakeStore()
	svc := newSubsidyService(store)

	grant, err := svc.Allocate(context.Background(), "sfd-1", 300_000, 1, nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	ok, err := svc.HasAvailableFunds(context.Background(), grant.ID, 500_000)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatal("300000 remaining cannot cover 500000")
	}

	ok, _ = svc.HasAvailableFunds(context.Background(), grant.ID, 300_000)
	if !ok {
		t.Fatal("exact remaining must be available")
	}
}

func TestRecordUsage_InsufficientFundsLeavesGrantUntouched(t *testing.T) {
	store := newFakeStore()
	svc := newSubsidyService(store)

	grant, _ := svc.Allocate(context.Background(), "sfd-1", 300_000, 1, nil)

	_, err := svc.RecordUsage(context.Background(), grant.ID, "loan-1", 500_000, "")
	var fundsErr *domain.InsufficientFundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("expected InsufficientFundsError; got %v", err)
	}
	if fundsErr.Available != 300_000 || fundsErr.Requested != 500_000 {
		t.Fatalf("unexpected detail: %+v", fundsErr)
	}

	view, _ := svc.Get(context.Background(), grant.ID)
	if view.Grant.UsedAmount != 0 || len(view.Usage) != 0 {
		t.Fatalf("grant must be untouched; got used=%d entries=%d", view.Grant.UsedAmount, len(view.Usage))
	}
}

func TestRecordUsage_LedgerBalancesWithUsedAmount(t *testing.T) {
	store := newFakeStore()
	svc := newSubsidyService(store)

	grant, _ := svc.Allocate(context.Background(), "sfd-1", 1_000_000, 1, nil)

	for i, amount := range []int64{250_000, 100_000, 400_000} {
		if _, err := svc.RecordUsage(context.Background(), grant.ID, "loan", amount, ""); err != nil {
			t.Fatalf("usage %d: %v", i, err)
		}
	}

	view, _ := svc.Get(context.Background(), grant.ID)
	var sum int64
	for _, u := range view.Usage {
		sum += u.Amount
	}
	if sum != view.Grant.UsedAmount {
		t.Fatalf("ledger sum %d != used_amount %d", sum, view.Grant.UsedAmount)
	}
	if view.Remaining != 250_000 {
		t.Fatalf("expected remaining 250000; got %d", view.Remaining)
	}
}

func TestRecordUsage_InactiveAndExpiredGrants(t *testing.T) {
	store := newFakeStore()
	svc := newSubsidyService(store)

	revoked, _ := svc.Allocate(context.Background(), "sfd-1", 100_000, 1, nil)
	if _, err := svc.Revoke(context.Background(), revoked.ID, 1); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	_, err := svc.RecordUsage(context.Background(), revoked.ID, "loan-1", 1000, "")
	var inactiveErr *domain.GrantInactiveError
	if !errors.As(err, &inactiveErr) || inactiveErr.Status != domain.SubsidyRevoked {
		t.Fatalf("expected revoked GrantInactiveError; got %v", err)
	}

	past := time.Now().AddDate(0, -1, 0)
	expired, _ := svc.Allocate(context.Background(), "sfd-2", 100_000, 1, &past)
	_, err = svc.RecordUsage(context.Background(), expired.ID, "loan-1", 1000, "")
	if !errors.As(err, &inactiveErr) || inactiveErr.Status != domain.SubsidyExpired {
		t.Fatalf("expected expired GrantInactiveError; got %v", err)
	}
}

func TestRecordUsage_UnknownGrant(t *testing.T) {
	svc := newSubsidyService(newFakeStore())

	_, err := svc.RecordUsage(context.Background(), "missing", "loan-1", 1000, "")
	var nfErr *domain.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError; got %v", err)
	}
}

func TestRevoke_AlreadyRevoked(t *testing.T) {
	store := newFakeStore()
	svc := newSubsidyService(store)

	grant, _ := svc.Allocate(context.Background(), "sfd-1", 100_000, 1, nil)
	revoked, err := svc.Revoke(context.Background(), grant.ID, 9)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.RevokedBy == nil || *revoked.RevokedBy != 9 {
		t.Fatalf("revocation must record the actor; got %+v", revoked.RevokedBy)
	}
	stored, _ := store.GetGrantByID(context.Background(), grant.ID)
	if stored.RevokedBy == nil || *stored.RevokedBy != 9 {
		t.Fatalf("revoked_by must be persisted; got %+v", stored.RevokedBy)
	}

	_, err = svc.Revoke(context.Background(), grant.ID, 1)
	var inactiveErr *domain.GrantInactiveError
	if !errors.As(err, &inactiveErr) {
		t.Fatalf("expected GrantInactiveError on double revoke; got %v", err)
	}
}

func TestRecordUsage_ConcurrentNeverOverdraws(t *testing.T) {
	store := newFakeStore()
	svc := newSubsidyService(store)

	grant, _ := svc.Allocate(context.Background(), "sfd-1", 500_000, 1, nil)

	// Three concurrent draws of 200k against 500k: exactly one must lose.
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordUsage(context.Background(), grant.ID, "loan", 200_000, "")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			var fundsErr *domain.InsufficientFundsError
			if !errors.As(err, &fundsErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one rejected draw; got %d", failures)
	}

	view, _ := svc.Get(context.Background(), grant.ID)
	if view.Grant.UsedAmount != 400_000 {
		t.Fatalf("expected used 400000; got %d", view.Grant.UsedAmount)
	}
}
