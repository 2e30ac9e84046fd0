package repository

import (
	"context"
	"database/sql"
	"errors"

	"soro-core/internal/domain"
)

// ErrVersionConflict signals that an optimistic update lost to a concurrent
// writer. Callers re-read and retry a bounded number of times.
var ErrVersionConflict = errors.New("row version conflict")

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanColumns = `id, client_id, sfd_id, amount, duration_months, interest_rate,
	monthly_payment, purpose, status, approved_at, approved_by, disbursed_at,
	next_payment_date, last_payment_date, subsidy_amount, subsidy_rate,
	rejection_notes, created_at, row_version`

func (r *LoanRepository) Create(ctx context.Context, l *domain.Loan) error {
	query := `
		INSERT INTO loans (id, client_id, sfd_id, amount, duration_months, interest_rate,
			monthly_payment, purpose, status, subsidy_amount, subsidy_rate, created_at, row_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.ClientID, l.SFDID, l.Amount, l.DurationMonths, l.InterestRate,
		l.MonthlyPayment, l.Purpose, l.Status, l.SubsidyAmount, l.SubsidyRate, l.CreatedAt,
	)
	if err == nil {
		l.RowVersion = 1
	}
	return err
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	return scanLoan(row, id)
}

// Update writes every mutable column guarded by the row version; on success
// the in-memory version is bumped to match the stored one.
func (r *LoanRepository) Update(ctx context.Context, l *domain.Loan) error {
	query := `
		UPDATE loans
		SET status = $1, monthly_payment = $2, approved_at = $3, approved_by = $4,
			disbursed_at = $5, next_payment_date = $6, last_payment_date = $7,
			rejection_notes = $8, row_version = row_version + 1
		WHERE id = $9 AND row_version = $10
	`
	res, err := r.db.ExecContext(ctx, query,
		l.Status, l.MonthlyPayment, l.ApprovedAt, l.ApprovedBy,
		l.DisbursedAt, l.NextPaymentDate, l.LastPaymentDate,
		l.RejectionNotes, l.ID, l.RowVersion,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	l.RowVersion++
	return nil
}

// Disburse commits a disbursement as one transaction: the loan's
// approved -> active flip under the version guard, the freshly generated
// installment rows, and, for a subsidized loan, the grant draw with its
// ledger entry. grant and usage are nil for unsubsidized loans. Any failure
// rolls the whole disbursement back, so a lost race leaves no trace.
func (r *LoanRepository) Disburse(
	ctx context.Context,
	l *domain.Loan,
	installments []domain.ScheduleInstallment,
	grant *domain.SubsidyGrant,
	usage *domain.SubsidyUsage,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Loan CAS first: a concurrent disbursement loses here before any
	// other row is touched.
	res, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET status = $1, monthly_payment = $2, disbursed_at = $3,
			next_payment_date = $4, row_version = row_version + 1
		WHERE id = $5 AND row_version = $6
	`, l.Status, l.MonthlyPayment, l.DisbursedAt, l.NextPaymentDate, l.ID, l.RowVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_installments (id, loan_id, installment_number, due_date,
			principal_amount, interest_amount, total_amount, remaining_principal,
			status, paid_amount, late_fee, days_overdue, row_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, 0, 1)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, inst := range installments {
		if _, err := stmt.ExecContext(ctx,
			inst.ID, inst.LoanID, inst.InstallmentNumber, inst.DueDate,
			inst.PrincipalAmount, inst.InterestAmount, inst.TotalAmount,
			inst.RemainingPrincipal, inst.Status,
		); err != nil {
			return err
		}
	}

	if grant != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE subsidy_grants
			SET used_amount = used_amount + $1, row_version = row_version + 1
			WHERE id = $2 AND row_version = $3 AND status = $4 AND used_amount + $1 <= amount
		`, usage.Amount, grant.ID, grant.RowVersion, domain.SubsidyActive)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrVersionConflict
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subsidy_usage (id, subsidy_id, loan_id, amount, used_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, usage.ID, usage.SubsidyID, usage.LoanID, usage.Amount, usage.UsedAt, usage.Notes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	l.RowVersion++
	if grant != nil {
		grant.UsedAmount += usage.Amount
		grant.RowVersion++
	}
	return nil
}

// ListActiveIDs feeds the periodic overdue sweep.
func (r *LoanRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM loans WHERE status IN ($1, $2)`,
		domain.LoanStatusActive, domain.LoanStatusLate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner, id string) (*domain.Loan, error) {
	var (
		l           domain.Loan
		approvedAt  sql.NullTime
		approvedBy  sql.NullInt64
		disbursedAt sql.NullTime
		nextPayment sql.NullTime
		lastPayment sql.NullTime
		notes       sql.NullString
	)

	err := row.Scan(
		&l.ID, &l.ClientID, &l.SFDID, &l.Amount, &l.DurationMonths, &l.InterestRate,
		&l.MonthlyPayment, &l.Purpose, &l.Status, &approvedAt, &approvedBy, &disbursedAt,
		&nextPayment, &lastPayment, &l.SubsidyAmount, &l.SubsidyRate,
		&notes, &l.CreatedAt, &l.RowVersion,
	)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Resource: "loan", ID: id}
	}
	if err != nil {
		return nil, err
	}

	if approvedAt.Valid {
		l.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		v := approvedBy.Int64
		l.ApprovedBy = &v
	}
	if disbursedAt.Valid {
		l.DisbursedAt = &disbursedAt.Time
	}
	if nextPayment.Valid {
		l.NextPaymentDate = &nextPayment.Time
	}
	if lastPayment.Valid {
		l.LastPaymentDate = &lastPayment.Time
	}
	if notes.Valid {
		l.RejectionNotes = &notes.String
	}

	return &l, nil
}
