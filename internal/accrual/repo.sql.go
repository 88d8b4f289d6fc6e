package accrual

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridianbank/internal/platform/db"
)

const interestLogColumns = `id, account_id, interest_amount, balance_before, balance_after, calculated_date, created_at`

const contributionColumns = `id, account_id, amount, deposit_date, created_at`

// Repository persists interest logs and RD contributions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the accrual repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PostInterest commits one accrual posting atomically: the log row, the
// watermark advance, and (for daily-compounding accounts) the balance
// credit. The watermark is re-checked under the row lock so a replayed run
// cannot double-post a date.
func (r *Repository) PostInterest(ctx context.Context, p Posting) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var watermark *time.Time
		err := tx.QueryRow(ctx,
			`SELECT last_interest_calculated_date FROM accounts WHERE id = $1 FOR UPDATE`,
			p.AccountID).Scan(&watermark)
		if err != nil {
			return fmt.Errorf("accrual: lock account %d: %w", p.AccountID, err)
		}
		if watermark != nil && !watermark.Before(p.Watermark) {
			// Already posted through this date.
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO interest_logs (account_id, interest_amount, balance_before, balance_after, calculated_date)
			VALUES ($1, $2, $3, $4, $5)`,
			p.AccountID, p.Amount, p.BalanceBefore, p.BalanceAfter, p.CalculatedDate)
		if err != nil {
			return fmt.Errorf("accrual: insert interest log: %w", err)
		}

		if p.CreditBalance {
			_, err = tx.Exec(ctx, `
				UPDATE accounts
				SET balance = $2, last_interest_calculated_date = $3, updated_at = now()
				WHERE id = $1`,
				p.AccountID, p.BalanceAfter, p.Watermark)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE accounts
				SET last_interest_calculated_date = $2, updated_at = now()
				WHERE id = $1`,
				p.AccountID, p.Watermark)
		}
		if err != nil {
			return fmt.Errorf("accrual: advance watermark for account %d: %w", p.AccountID, err)
		}
		return nil
	})
}

// InsertContribution appends an RD installment row.
func (r *Repository) InsertContribution(ctx context.Context, c *Contribution) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rd_contributions (account_id, amount, deposit_date)
		VALUES ($1, $2, $3)
		RETURNING id`,
		c.AccountID, c.Amount, c.DepositDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("accrual: insert contribution: %w", err)
	}
	return id, nil
}

// ListContributions returns an account's installments in deposit order. A
// zero upTo lists everything.
func (r *Repository) ListContributions(ctx context.Context, accountID int64, upTo time.Time) ([]Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM rd_contributions
		WHERE account_id = $1`
	args := []any{accountID}
	if !upTo.IsZero() {
		query += ` AND deposit_date <= $2`
		args = append(args, upTo)
	}
	query += ` ORDER BY deposit_date, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("accrual: list contributions: %w", err)
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Amount, &c.DepositDate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("accrual: scan contribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListInterestLogs returns interest postings, newest first, optionally
// bounded by calculated date.
func (r *Repository) ListInterestLogs(ctx context.Context, accountID int64, from, to *time.Time) ([]InterestLog, error) {
	query := `
		SELECT ` + interestLogColumns + `
		FROM interest_logs
		WHERE account_id = $1`
	args := []any{accountID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(` AND calculated_date >= $%d`, len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(` AND calculated_date <= $%d`, len(args))
	}
	query += ` ORDER BY calculated_date DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("accrual: list interest logs: %w", err)
	}
	defer rows.Close()

	var out []InterestLog
	for rows.Next() {
		var l InterestLog
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Amount, &l.BalanceBefore, &l.BalanceAfter, &l.CalculatedDate, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("accrual: scan interest log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
