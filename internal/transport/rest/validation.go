package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"soro-core/internal/domain"
	"soro-core/internal/service"
)

// Request bodies arrive from several clients (web dashboard, mobile app,
// USSD gateway) that disagree on number formatting, so numeric fields accept
// both JSON numbers and numeric strings and are coerced here at the boundary.

type rawCreateLoanRequest struct {
	ClientID       interface{} `json:"client_id"`
	SFDID          interface{} `json:"sfd_id"`
	Amount         interface{} `json:"amount"`
	DurationMonths interface{} `json:"duration_months"`
	InterestRate   interface{} `json:"interest_rate"`
	Purpose        string      `json:"purpose"`
	SubsidyAmount  interface{} `json:"subsidy_amount"`
	SubsidyRate    interface{} `json:"subsidy_rate"`
}

func ValidateCreateLoanRequest(r *http.Request) (*service.CreateLoanInput, error) {
	var raw rawCreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &domain.ValidationError{Message: "invalid JSON body"}
	}

	clientID, err := toString(raw.ClientID)
	if err != nil {
		return nil, &domain.ValidationError{Field: "client_id", Message: "client_id must be a string"}
	}
	sfdID, err := toString(raw.SFDID)
	if err != nil {
		return nil, &domain.ValidationError{Field: "sfd_id", Message: "sfd_id must be a string"}
	}
	amount, err := toInt64(raw.Amount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be an integer"}
	}
	months, err := toInt64(raw.DurationMonths)
	if err != nil {
		return nil, &domain.ValidationError{Field: "duration_months", Message: "duration_months must be an integer"}
	}
	rate, err := toFloat64(raw.InterestRate)
	if err != nil {
		return nil, &domain.ValidationError{Field: "interest_rate", Message: "interest_rate must be a number"}
	}
	subsidyAmount, err := toInt64(raw.SubsidyAmount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "subsidy_amount", Message: "subsidy_amount must be an integer"}
	}
	subsidyRate, err := toFloat64(raw.SubsidyRate)
	if err != nil {
		return nil, &domain.ValidationError{Field: "subsidy_rate", Message: "subsidy_rate must be a number"}
	}

	return &service.CreateLoanInput{
		ClientID:       clientID,
		SFDID:          sfdID,
		Amount:         amount,
		DurationMonths: int(months),
		InterestRate:   rate,
		Purpose:        raw.Purpose,
		SubsidyAmount:  subsidyAmount,
		SubsidyRate:    subsidyRate,
	}, nil
}

type RejectLoanRequest struct {
	Notes string `json:"notes"`
}

func ValidateRejectLoanRequest(r *http.Request) (*RejectLoanRequest, error) {
	var req RejectLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, &domain.ValidationError{Message: "invalid JSON body"}
	}
	return &req, nil
}

type QuoteRequest struct {
	Principal      int64
	InterestRate   float64
	DurationMonths int
	StartDate      time.Time
}

type rawQuoteRequest struct {
	Principal      interface{} `json:"principal"`
	InterestRate   interface{} `json:"interest_rate"`
	DurationMonths interface{} `json:"duration_months"`
	StartDate      string      `json:"start_date"`
}

func ValidateQuoteRequest(r *http.Request) (*QuoteRequest, error) {
	var raw rawQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &domain.ValidationError{Message: "invalid JSON body"}
	}

	principal, err := toInt64(raw.Principal)
	if err != nil {
		return nil, &domain.ValidationError{Field: "principal", Message: "principal must be an integer"}
	}
	rate, err := toFloat64(raw.InterestRate)
	if err != nil {
		return nil, &domain.ValidationError{Field: "interest_rate", Message: "interest_rate must be a number"}
	}
	months, err := toInt64(raw.DurationMonths)
	if err != nil {
		return nil, &domain.ValidationError{Field: "duration_months", Message: "duration_months must be an integer"}
	}

	startDate := time.Now()
	if raw.StartDate != "" {
		parsed, err := time.Parse(time.RFC3339, raw.StartDate)
		if err != nil {
			return nil, &domain.ValidationError{Field: "start_date", Message: "start_date must be RFC3339"}
		}
		startDate = parsed
	}

	return &QuoteRequest{
		Principal:      principal,
		InterestRate:   rate,
		DurationMonths: int(months),
		StartDate:      startDate,
	}, nil
}

type PaymentRequest struct {
	LoanID        string
	Amount        int64
	Method        string
	TransactionID string
}

type rawPaymentRequest struct {
	LoanID        interface{} `json:"loan_id"`
	Amount        interface{} `json:"amount"`
	Method        string      `json:"payment_method"`
	TransactionID interface{} `json:"transaction_id"`
}

func ValidatePaymentRequest(r *http.Request) (*PaymentRequest, error) {
	var raw rawPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &domain.ValidationError{Message: "invalid JSON body"}
	}

	loanID, err := toString(raw.LoanID)
	if err != nil || loanID == "" {
		return nil, &domain.ValidationError{Field: "loan_id", Message: "loan_id is required"}
	}
	amount, err := toInt64(raw.Amount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be an integer"}
	}
	transactionID, err := toString(raw.TransactionID)
	if err != nil || transactionID == "" {
		return nil, &domain.ValidationError{Field: "transaction_id", Message: "transaction_id is required"}
	}

	return &PaymentRequest{
		LoanID:        loanID,
		Amount:        amount,
		Method:        raw.Method,
		TransactionID: transactionID,
	}, nil
}

type AllocateSubsidyRequest struct {
	SFDID   string
	Amount  int64
	EndDate *time.Time
}

type rawAllocateSubsidyRequest struct {
	SFDID   interface{} `json:"sfd_id"`
	Amount  interface{} `json:"amount"`
	EndDate string      `json:"end_date"`
}

func ValidateAllocateSubsidyRequest(r *http.Request) (*AllocateSubsidyRequest, error) {
	var raw rawAllocateSubsidyRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &domain.ValidationError{Message: "invalid JSON body"}
	}

	sfdID, err := toString(raw.SFDID)
	if err != nil || sfdID == "" {
		return nil, &domain.ValidationError{Field: "sfd_id", Message: "sfd_id is required"}
	}
	amount, err := toInt64(raw.Amount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be an integer"}
	}

	var endDate *time.Time
	if raw.EndDate != "" {
		parsed, err := time.Parse(time.RFC3339, raw.EndDate)
		if err != nil {
			return nil, &domain.ValidationError{Field: "end_date", Message: "end_date must be RFC3339"}
		}
		endDate = &parsed
	}

	return &AllocateSubsidyRequest{SFDID: sfdID, Amount: amount, EndDate: endDate}, nil
}

type SubsidyUsageRequest struct {
	LoanID string
	Amount int64
	Notes  string
}

type rawSubsidyUsageRequest struct {
	LoanID interface{} `json:"loan_id"`
	Amount interface{} `json:"amount"`
	Notes  string      `json:"notes"`
}

func ValidateSubsidyUsageRequest(r *http.Request) (*SubsidyUsageRequest, error) {
	var raw rawSubsidyUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, &domain.ValidationError{Message: "invalid JSON body"}
	}

	loanID, err := toString(raw.LoanID)
	if err != nil || loanID == "" {
		return nil, &domain.ValidationError{Field: "loan_id", Message: "loan_id is required"}
	}
	amount, err := toInt64(raw.Amount)
	if err != nil {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must be an integer"}
	}

	return &SubsidyUsageRequest{LoanID: loanID, Amount: amount, Notes: raw.Notes}, nil
}

func toString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatInt(int64(t), 10), nil
	default:
		return "", &domain.ValidationError{Message: "invalid type for string field"}
	}
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(t), nil
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, &domain.ValidationError{Message: "invalid type for int field"}
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseFloat(t, 64)
	default:
		return 0, &domain.ValidationError{Message: "invalid type for float field"}
	}
}
