package repository

import (
	"context"
	"database/sql"

	"soro-core/internal/domain"
)

type InstallmentRepository struct {
	db *sql.DB
}

func NewInstallmentRepository(db *sql.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

const installmentColumns = `id, loan_id, installment_number, due_date, principal_amount,
	interest_amount, total_amount, remaining_principal, status, paid_amount, paid_at,
	late_fee, days_overdue, row_version`

func (r *InstallmentRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.ScheduleInstallment, error) {
	query := `SELECT ` + installmentColumns + `
		FROM schedule_installments
		WHERE loan_id = $1
		ORDER BY installment_number ASC, due_date ASC`
	return r.queryInstallments(ctx, query, loanID)
}

// ListOutstanding returns non-paid rows oldest-first, the allocation order
// for incoming payments.
func (r *InstallmentRepository) ListOutstanding(ctx context.Context, loanID string) ([]domain.ScheduleInstallment, error) {
	query := `SELECT ` + installmentColumns + `
		FROM schedule_installments
		WHERE loan_id = $1 AND status != $2
		ORDER BY installment_number ASC, due_date ASC`
	return r.queryInstallments(ctx, query, loanID, domain.InstallmentPaid)
}

// UpdateBatch writes the mutated rows in one transaction, each guarded by its
// row version. Any conflict rolls back the whole batch.
func (r *InstallmentRepository) UpdateBatch(ctx context.Context, rows []domain.ScheduleInstallment) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := updateInstallmentsTx(ctx, tx, rows); err != nil {
		return err
	}

	return tx.Commit()
}

func updateInstallmentsTx(ctx context.Context, tx *sql.Tx, rows []domain.ScheduleInstallment) error {
	stmt, err := tx.PrepareContext(ctx, `
		UPDATE schedule_installments
		SET status = $1, paid_amount = $2, paid_at = $3, late_fee = $4,
			days_overdue = $5, row_version = row_version + 1
		WHERE id = $6 AND row_version = $7
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, inst := range rows {
		res, err := stmt.ExecContext(ctx,
			inst.Status, inst.PaidAmount, inst.PaidAt, inst.LateFee,
			inst.DaysOverdue, inst.ID, inst.RowVersion,
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
	}
	return nil
}

func (r *InstallmentRepository) queryInstallments(ctx context.Context, query string, args ...any) ([]domain.ScheduleInstallment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScheduleInstallment
	for rows.Next() {
		var (
			inst   domain.ScheduleInstallment
			paidAt sql.NullTime
		)
		if err := rows.Scan(
			&inst.ID, &inst.LoanID, &inst.InstallmentNumber, &inst.DueDate,
			&inst.PrincipalAmount, &inst.InterestAmount, &inst.TotalAmount,
			&inst.RemainingPrincipal, &inst.Status, &inst.PaidAmount, &paidAt,
			&inst.LateFee, &inst.DaysOverdue, &inst.RowVersion,
		); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			inst.PaidAt = &paidAt.Time
		}
		out = append(out, inst)
	}

	return out, rows.Err()
}
