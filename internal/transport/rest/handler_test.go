package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"soro-core/internal/domain"
	"soro-core/internal/service"
)

type stubLoans struct {
	LoanLifecycle
	getView func(ctx context.Context, id string) (*service.LoanView, error)
}

func (s *stubLoans) GetView(ctx context.Context, id string) (*service.LoanView, error) {
	return s.getView(ctx, id)
}

type stubPayments struct {
	PaymentApplier
	apply func(ctx context.Context, loanID string, amount int64, method, transactionID string) (*service.ApplyResult, error)
}

func (s *stubPayments) Apply(ctx context.Context, loanID string, amount int64, method, transactionID string) (*service.ApplyResult, error) {
	return s.apply(ctx, loanID, amount, method, transactionID)
}

type stubSubsidies struct {
	SubsidyLedger
}

func newTestRouter(loans LoanLifecycle, payments PaymentApplier) http.Handler {
	return NewHandler(loans, payments, &stubSubsidies{}).InitRouter()
}

func TestCalculateLoanSchedule(t *testing.T) {
	router := newTestRouter(&stubLoans{}, &stubPayments{})

	body := `{"principal": 1000000, "interest_rate": 12, "duration_months": 6}`
	req := httptest.NewRequest(http.MethodPost, "/calculate-loan-schedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			MonthlyPayment int64 `json:"monthly_payment"`
			Schedule       []struct {
				InstallmentNumber int `json:"installment_number"`
			} `json:"schedule"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q, want success", resp.Status)
	}
	if len(resp.Data.Schedule) != 6 {
		t.Errorf("schedule length = %d, want 6", len(resp.Data.Schedule))
	}
	if resp.Data.MonthlyPayment <= 0 {
		t.Errorf("monthly_payment = %d, want > 0", resp.Data.MonthlyPayment)
	}
}

func TestCalculateLoanScheduleRejectsBadInput(t *testing.T) {
	router := newTestRouter(&stubLoans{}, &stubPayments{})

	body := `{"principal": -5, "interest_rate": 12, "duration_months": 6}`
	req := httptest.NewRequest(http.MethodPost, "/calculate-loan-schedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestApplyLoanPaymentOverpaymentMapsTo422(t *testing.T) {
	payments := &stubPayments{
		apply: func(ctx context.Context, loanID string, amount int64, method, transactionID string) (*service.ApplyResult, error) {
			return nil, &domain.OverpaymentError{LoanID: loanID, Excess: 500}
		},
	}
	router := newTestRouter(&stubLoans{}, payments)

	body := `{"loan_id": "loan-1", "amount": 3000, "transaction_id": "txn-9"}`
	req := httptest.NewRequest(http.MethodPost, "/apply-loan-payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Excess int64 `json:"excess"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Excess != 500 {
		t.Errorf("excess = %d, want 500", resp.Data.Excess)
	}
}

func TestApplyLoanPaymentRequiresTransactionID(t *testing.T) {
	router := newTestRouter(&stubLoans{}, &stubPayments{})

	body := `{"loan_id": "loan-1", "amount": 3000}`
	req := httptest.NewRequest(http.MethodPost, "/apply-loan-payment", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetLoanNotFoundMapsTo404(t *testing.T) {
	loans := &stubLoans{
		getView: func(ctx context.Context, id string) (*service.LoanView, error) {
			return nil, &domain.NotFoundError{Resource: "loan", ID: id}
		},
	}
	router := newTestRouter(loans, &stubPayments{})

	req := httptest.NewRequest(http.MethodGet, "/loans/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateLoanWithoutActorIsUnauthorized(t *testing.T) {
	router := newTestRouter(&stubLoans{}, &stubPayments{})

	body := `{"client_id": "c-1", "sfd_id": "sfd-1", "amount": 100000, "duration_months": 6, "interest_rate": 12}`
	req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestQuoteStartDateParsing(t *testing.T) {
	router := newTestRouter(&stubLoans{}, &stubPayments{})

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	body := `{"principal": 120000, "interest_rate": 0, "duration_months": 12, "start_date": "` + start.Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/calculate-loan-schedule", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Schedule []struct {
				DueDate time.Time `json:"due_date"`
			} `json:"schedule"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Schedule) != 12 {
		t.Fatalf("schedule length = %d, want 12", len(resp.Data.Schedule))
	}
	want := start.AddDate(0, 1, 0)
	if !resp.Data.Schedule[0].DueDate.Equal(want) {
		t.Errorf("first due date = %v, want %v", resp.Data.Schedule[0].DueDate, want)
	}
}
