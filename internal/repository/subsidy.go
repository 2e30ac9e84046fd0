package repository

import (
	"context"
	"database/sql"

	"soro-core/internal/domain"
)

type SubsidyRepository struct {
	db *sql.DB
}

func NewSubsidyRepository(db *sql.DB) *SubsidyRepository {
	return &SubsidyRepository{db: db}
}

const subsidyColumns = `id, sfd_id, amount, used_amount, status, allocated_by, allocated_at, end_date, revoked_by, row_version`

func (r *SubsidyRepository) Create(ctx context.Context, g *domain.SubsidyGrant) error {
	query := `
		INSERT INTO subsidy_grants (id, sfd_id, amount, used_amount, status, allocated_by, allocated_at, end_date, row_version)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7, 1)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.SFDID, g.Amount, g.Status, g.AllocatedBy, g.AllocatedAt, g.EndDate)
	if err == nil {
		g.RowVersion = 1
	}
	return err
}

func (r *SubsidyRepository) GetByID(ctx context.Context, id string) (*domain.SubsidyGrant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subsidyColumns+` FROM subsidy_grants WHERE id = $1`, id)
	return scanSubsidy(row, id)
}

// GetActiveBySFD returns the SFD's oldest active grant, the one disbursements
// draw from first.
func (r *SubsidyRepository) GetActiveBySFD(ctx context.Context, sfdID string) (*domain.SubsidyGrant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subsidyColumns+` FROM subsidy_grants
		WHERE sfd_id = $1 AND status = $2
		ORDER BY allocated_at ASC
		LIMIT 1
	`, sfdID, domain.SubsidyActive)
	return scanSubsidy(row, sfdID)
}

func (r *SubsidyRepository) ListUsage(ctx context.Context, subsidyID string) ([]domain.SubsidyUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subsidy_id, loan_id, amount, used_at, notes
		FROM subsidy_usage
		WHERE subsidy_id = $1
		ORDER BY used_at ASC
	`, subsidyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SubsidyUsage
	for rows.Next() {
		var (
			u     domain.SubsidyUsage
			notes sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.SubsidyID, &u.LoanID, &u.Amount, &u.UsedAt, &notes); err != nil {
			return nil, err
		}
		if notes.Valid {
			u.Notes = notes.String
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// RecordUsage performs the balance check and the ledger append in a single
// transaction. The UPDATE both enforces the version guard and re-asserts the
// funds and status invariants at commit time, so two concurrent usages can
// never overdraw the grant.
func (r *SubsidyRepository) RecordUsage(ctx context.Context, grant *domain.SubsidyGrant, usage *domain.SubsidyUsage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

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

	if err := tx.Commit(); err != nil {
		return err
	}
	grant.UsedAmount += usage.Amount
	grant.RowVersion++
	return nil
}

// UpdateStatus flips the grant's lifecycle state under the version guard.
// revoked_by travels with the status: set on revocation, null otherwise.
func (r *SubsidyRepository) UpdateStatus(ctx context.Context, g *domain.SubsidyGrant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subsidy_grants
		SET status = $1, revoked_by = $2, row_version = row_version + 1
		WHERE id = $3 AND row_version = $4
	`, g.Status, g.RevokedBy, g.ID, g.RowVersion)
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
	g.RowVersion++
	return nil
}

func scanSubsidy(row rowScanner, id string) (*domain.SubsidyGrant, error) {
	var (
		g         domain.SubsidyGrant
		endDate   sql.NullTime
		revokedBy sql.NullInt64
	)
	err := row.Scan(&g.ID, &g.SFDID, &g.Amount, &g.UsedAmount, &g.Status,
		&g.AllocatedBy, &g.AllocatedAt, &endDate, &revokedBy, &g.RowVersion)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Resource: "subsidy", ID: id}
	}
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		g.EndDate = &endDate.Time
	}
	if revokedBy.Valid {
		v := revokedBy.Int64
		g.RevokedBy = &v
	}
	return &g, nil
}
