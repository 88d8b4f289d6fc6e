package closure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/ledger"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// Repository commits break transfers.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository builds the closure repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// BreakTransfer runs the whole break as one transaction: close the broken
// account, credit the savings account (created on the fly when the customer
// has none), and append the withdrawal/deposit entry pair. Either the full
// movement lands or none of it does.
func (r *Repository) BreakTransfer(ctx context.Context, in BreakTransfer) (*BreakResult, error) {
	var result *BreakResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		accounts := account.NewTxRepository(tx)

		broken, err := accounts.LockAccount(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if !broken.Active() {
			return shared.ErrAccountClosed
		}

		savings, err := accounts.LockActiveSavings(ctx, in.CustomerID)
		if errors.Is(err, shared.ErrNotFound) {
			savings, err = r.createSavings(ctx, accounts, in.CustomerID)
		}
		if err != nil {
			return err
		}

		brokenBefore := broken.Balance
		savingsBefore := savings.Balance
		savingsAfter := money.Round2(savingsBefore + in.Amount)

		if err := accounts.CloseAccount(ctx, in.AccountID); err != nil {
			return err
		}
		if err := accounts.UpdateBalance(ctx, savings.ID, savingsAfter); err != nil {
			return err
		}

		entries := ledger.NewTxRepository(tx)
		withdrawal := &ledger.Entry{
			AccountID:     in.AccountID,
			Type:          ledger.TypeWithdrawal,
			Amount:        money.Round2(brokenBefore),
			BalanceBefore: brokenBefore,
			BalanceAfter:  0,
			Description:   in.WithdrawalDescription,
			Reference:     ledger.NewReference(r.now()),
		}
		if err := entries.Insert(ctx, withdrawal); err != nil {
			return err
		}
		deposit := &ledger.Entry{
			AccountID:     savings.ID,
			Type:          ledger.TypeDeposit,
			Amount:        in.Amount,
			BalanceBefore: savingsBefore,
			BalanceAfter:  savingsAfter,
			Description:   in.DepositDescription,
			Reference:     ledger.NewReference(r.now()),
		}
		if err := entries.Insert(ctx, deposit); err != nil {
			return err
		}

		result = &BreakResult{
			BrokenAccountID:     in.AccountID,
			SavingsAccountID:    savings.ID,
			Transfer:            in.Amount,
			SavingsBalance:      savingsAfter,
			WithdrawalReference: withdrawal.Reference,
			DepositReference:    deposit.Reference,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("closure: break transfer for account %d: %w", in.AccountID, err)
	}
	return result, nil
}

func (r *Repository) createSavings(ctx context.Context, accounts account.TxRepository, customerID int64) (*account.Account, error) {
	savingsType, err := accounts.GetSavingsType(ctx)
	if err != nil {
		return nil, fmt.Errorf("closure: no savings account type configured: %w", err)
	}
	now := r.now()
	a := &account.Account{
		CustomerID:    customerID,
		AccountTypeID: savingsType.ID,
		Type:          *savingsType,
		Balance:       0,
		StartDate:     now,
		Status:        account.StatusActive,
		Snapshot:      account.SnapshotFrom(*savingsType),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	id, err := accounts.CreateAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return a, nil
}
