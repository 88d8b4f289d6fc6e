package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/internal/shared"
)

const entryColumns = `id, account_id, entry_type, amount, balance_before, balance_after, description, reference_number, created_at`

// Repository persists ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.AccountID, &e.Type, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
		&e.Description, &e.Reference, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEntry loads one entry by id.
func (r *Repository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err == pgx.ErrNoRows {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get entry %d: %w", id, err)
	}
	return e, nil
}

// ListByAccount returns an account's entries, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC, id DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.Description, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PostEntry commits one movement atomically: it locks the account row,
// derives the pre/post balances from the entry type, writes the new balance
// and appends the entry.
func (r *Repository) PostEntry(ctx context.Context, accountID int64, entryType EntryType, amount float64, description, reference string) (*Entry, error) {
	var posted *Entry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		accounts := account.NewTxRepository(tx)
		a, err := accounts.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !a.Active() {
			return shared.ErrAccountClosed
		}

		before := a.Balance
		after := before - amount
		if entryType.Credits() {
			after = before + amount
		}
		after = money.Round2(after)

		if err := accounts.UpdateBalance(ctx, accountID, after); err != nil {
			return err
		}
		e := &Entry{
			AccountID:     accountID,
			Type:          entryType,
			Amount:        money.Round2(amount),
			BalanceBefore: before,
			BalanceAfter:  after,
			Description:   description,
			Reference:     reference,
		}
		if err := NewTxRepository(tx).Insert(ctx, e); err != nil {
			return err
		}
		posted = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posted, nil
}

// CloseSettledLoan marks a loan closed once its balance is back to zero or
// better. No-op while any principal is outstanding.
func (r *Repository) CloseSettledLoan(ctx context.Context, accountID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET status = 'closed', balance = 0, updated_at = now()
		WHERE id = $1 AND status = 'active' AND balance >= 0`,
		accountID)
	if err != nil {
		return false, fmt.Errorf("ledger: close settled loan %d: %w", accountID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// TxRepository appends entries inside a caller-owned transaction; the break
// flow uses it to post the withdrawal/deposit pair atomically with the
// balance moves.
type TxRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps a transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return TxRepository{tx: tx}
}

// Insert appends one entry and fills in its id and created-at.
func (r TxRepository) Insert(ctx context.Context, e *Entry) error {
	err := r.tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (account_id, entry_type, amount, balance_before, balance_after, description, reference_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		e.AccountID, e.Type, e.Amount, e.BalanceBefore, e.BalanceAfter, e.Description, e.Reference).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: insert entry: %w", err)
	}
	return nil
}
