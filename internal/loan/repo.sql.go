package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/internal/shared"
)

const installmentColumns = `id, account_id, sequence, due_date, emi_amount, principal_component,
interest_component, remaining_before, remaining_after, is_paid, paid_amount, paid_date,
ledger_entry_id, is_overdue, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for installments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountInstallments returns how many installments exist for the account.
func (r *Repository) CountInstallments(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM loan_installments WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("loan: count installments %d: %w", accountID, err)
	}
	return count, nil
}

// InsertSchedule persists a whole schedule in one transaction: either every
// installment row becomes visible or none do. A unique-violation on
// (account_id, sequence) means a concurrent retry already generated the
// schedule, which is treated as success.
func (r *Repository) InsertSchedule(ctx context.Context, accountID int64, installments []Installment) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, inst := range installments {
			_, err := tx.Exec(ctx, `INSERT INTO loan_installments
(account_id, sequence, due_date, emi_amount, principal_component, interest_component,
remaining_before, remaining_after, is_paid, is_overdue, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE,FALSE,now(),now())`,
				accountID, inst.Sequence, inst.DueDate, inst.EMIAmount, inst.PrincipalComponent,
				inst.InterestComponent, inst.RemainingBefore, inst.RemainingAfter)
			if err != nil {
				return fmt.Errorf("loan: insert installment %d/%d: %w", accountID, inst.Sequence, err)
			}
		}
		return nil
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil
	}
	return err
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var installments []Installment
	for rows.Next() {
		var inst Installment
		if err := rows.Scan(
			&inst.ID, &inst.AccountID, &inst.Sequence, &inst.DueDate, &inst.EMIAmount, &inst.PrincipalComponent,
			&inst.InterestComponent, &inst.RemainingBefore, &inst.RemainingAfter, &inst.Paid, &inst.PaidAmount, &inst.PaidDate,
			&inst.LedgerEntryID, &inst.Overdue, &inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("loan: scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return installments, nil
}

// ListSchedule returns all installments ordered by sequence.
func (r *Repository) ListSchedule(ctx context.Context, accountID int64) ([]Installment, error) {
	return r.list(ctx, `SELECT `+installmentColumns+` FROM loan_installments
WHERE account_id = $1 ORDER BY sequence`, accountID)
}

// ListUnpaid returns unpaid installments ordered by due date ascending.
func (r *Repository) ListUnpaid(ctx context.Context, accountID int64) ([]Installment, error) {
	return r.list(ctx, `SELECT `+installmentColumns+` FROM loan_installments
WHERE account_id = $1 AND NOT is_paid ORDER BY due_date`, accountID)
}

// MarkPaid settles one installment.
func (r *Repository) MarkPaid(ctx context.Context, installmentID int64, amount float64, paidDate time.Time, ledgerEntryID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE loan_installments SET
is_paid = TRUE, paid_amount = $2, paid_date = $3,
ledger_entry_id = COALESCE($4, ledger_entry_id), is_overdue = FALSE, updated_at = now()
WHERE id = $1 AND NOT is_paid`, installmentID, amount, paidDate, ledgerEntryID)
	if err != nil {
		return fmt.Errorf("loan: mark paid %d: %w", installmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RefreshOverdue recomputes the cached overdue flag for every unpaid
// installment of the account.
func (r *Repository) RefreshOverdue(ctx context.Context, accountID int64, asOf time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE loan_installments SET
is_overdue = (due_date < $2), updated_at = now()
WHERE account_id = $1 AND NOT is_paid`, accountID, asOf)
	if err != nil {
		return fmt.Errorf("loan: refresh overdue %d: %w", accountID, err)
	}
	return nil
}
