package repository

import (
	"context"
	"database/sql"
	"errors"

	"soro-core/internal/domain"
)

// ErrDuplicateTransaction signals that a payment with the same external
// transaction reference was already applied. The caller treats the original
// result as authoritative instead of applying twice.
var ErrDuplicateTransaction = errors.New("duplicate transaction reference")

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.LoanPayment, error) {
	query := `SELECT id, loan_id, amount, excess_amount, payment_method, status, payment_date, transaction_id
		FROM loan_payments WHERE transaction_id = $1`

	var p domain.LoanPayment
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&p.ID, &p.LoanID, &p.Amount, &p.ExcessAmount, &p.Method, &p.Status, &p.PaymentDate, &p.TransactionID,
	)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Resource: "payment", ID: transactionID}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.LoanPayment, error) {
	query := `SELECT id, loan_id, amount, excess_amount, payment_method, status, payment_date, transaction_id
		FROM loan_payments WHERE loan_id = $1 ORDER BY payment_date ASC`

	rows, err := r.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoanPayment
	for rows.Next() {
		var p domain.LoanPayment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.ExcessAmount, &p.Method, &p.Status, &p.PaymentDate, &p.TransactionID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyAllocation persists one payment event atomically: the append-only
// payment row, the mutated installments and the loan's payment bookkeeping all
// commit together or not at all. The unique index on transaction_id rejects a
// replay; version guards on installments and loan reject concurrent writers.
func (r *PaymentRepository) ApplyAllocation(
	ctx context.Context,
	payment *domain.LoanPayment,
	installments []domain.ScheduleInstallment,
	loan *domain.Loan,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO loan_payments (id, loan_id, amount, excess_amount, payment_method, status, payment_date, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_id) DO NOTHING
	`, payment.ID, payment.LoanID, payment.Amount, payment.ExcessAmount,
		payment.Method, payment.Status, payment.PaymentDate, payment.TransactionID)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return ErrDuplicateTransaction
	}

	if err := updateInstallmentsTx(ctx, tx, installments); err != nil {
		return err
	}

	loanRes, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET status = $1, next_payment_date = $2, last_payment_date = $3, row_version = row_version + 1
		WHERE id = $4 AND row_version = $5
	`, loan.Status, loan.NextPaymentDate, loan.LastPaymentDate, loan.ID, loan.RowVersion)
	if err != nil {
		return err
	}
	affected, err := loanRes.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	loan.RowVersion++
	return nil
}
