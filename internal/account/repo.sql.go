package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridianbank/internal/shared"
)

const accountColumns = `a.id, a.customer_id, a.account_type_id, a.balance, a.start_date, a.maturity_date,
a.status, a.last_interest_calculated_date, a.daily_contribution, a.contribution_day, a.emi_due_day,
a.last_payment_date, a.snapshot_interest_rate, a.snapshot_calculation_method, a.snapshot_calculation_frequency,
a.snapshot_penalty_rate, a.snapshot_lock_in_days, a.snapshot_contribution_frequency, a.snapshot_min_contribution,
a.snapshot_min_deposit, a.snapshot_max_deposit, a.snapshot_min_withdrawal, a.snapshot_max_withdrawal,
a.snapshot_minimum_balance, a.snapshot_loan_principal, a.snapshot_emi_amount, a.snapshot_loan_term_months,
a.snapshot_repayment_frequency, a.snapshot_loan_penalty_rate, a.custom_interest_rate, a.use_custom_parameters,
a.created_by, a.created_at, a.updated_at,
t.id, t.name, t.family, t.interest_rate, t.interest_calculation_method, t.interest_calculation_frequency,
t.early_withdrawal_penalty_rate, t.lock_in_period_days, t.term_in_days, t.contribution_frequency,
t.min_contribution_amount, t.repayment_frequency, t.loan_penalty_rate, t.min_deposit, t.max_deposit,
t.min_withdrawal, t.max_withdrawal, t.minimum_balance`

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.CustomerID, &a.AccountTypeID, &a.Balance, &a.StartDate, &a.MaturityDate,
		&a.Status, &a.LastInterestAt, &a.DailyContribution, &a.ContributionDay, &a.EMIDueDay,
		&a.LastPaymentDate, &a.Snapshot.InterestRate, &a.Snapshot.CalculationMethod, &a.Snapshot.CalculationFrequency,
		&a.Snapshot.EarlyWithdrawalPenaltyRate, &a.Snapshot.LockInPeriodDays, &a.Snapshot.ContributionFrequency, &a.Snapshot.MinContributionAmount,
		&a.Snapshot.MinDeposit, &a.Snapshot.MaxDeposit, &a.Snapshot.MinWithdrawal, &a.Snapshot.MaxWithdrawal,
		&a.Snapshot.MinimumBalance, &a.Snapshot.LoanPrincipal, &a.Snapshot.EMIAmount, &a.Snapshot.LoanTermMonths,
		&a.Snapshot.RepaymentFrequency, &a.Snapshot.LoanPenaltyRate, &a.CustomInterestRate, &a.UseCustomParameters,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		&a.Type.ID, &a.Type.Name, &a.Type.Family, &a.Type.InterestRate, &a.Type.InterestCalculationMethod, &a.Type.InterestCalculationFreq,
		&a.Type.EarlyWithdrawalPenaltyRate, &a.Type.LockInPeriodDays, &a.Type.TermInDays, &a.Type.ContributionFrequency,
		&a.Type.MinContributionAmount, &a.Type.RepaymentFrequency, &a.Type.LoanPenaltyRate, &a.Type.MinDeposit, &a.Type.MaxDeposit,
		&a.Type.MinWithdrawal, &a.Type.MaxWithdrawal, &a.Type.MinimumBalance,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount loads an account with its type defaults.
func (r *Repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.account_type_id
WHERE a.id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: get %d: %w", id, err)
	}
	return a, nil
}

// ListActiveByFamily returns active accounts of the given family whose start
// date is not in the future. The batch accrual runs select through this.
func (r *Repository) ListActiveByFamily(ctx context.Context, family Family, asOf time.Time) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.account_type_id
WHERE a.status = 'active' AND t.family = $1 AND a.start_date <= $2
ORDER BY a.id`, family, asOf)
	if err != nil {
		return nil, fmt.Errorf("account: list %s: %w", family, err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("account: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListByCustomer returns all accounts owned by a customer.
func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.account_type_id
WHERE a.customer_id = $1 ORDER BY a.id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("account: list customer %d: %w", customerID, err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("account: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// FindActiveSavings returns the customer's active savings account, or
// shared.ErrNotFound.
func (r *Repository) FindActiveSavings(ctx context.Context, customerID int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.account_type_id
WHERE a.customer_id = $1 AND t.family = 'SAVINGS' AND a.status = 'active'
ORDER BY a.id LIMIT 1`, customerID)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: find savings for customer %d: %w", customerID, err)
	}
	return a, nil
}

// GetAccountType loads current type defaults.
func (r *Repository) GetAccountType(ctx context.Context, id int64) (*AccountType, error) {
	var t AccountType
	err := r.pool.QueryRow(ctx, `SELECT id, name, family, interest_rate, interest_calculation_method,
interest_calculation_frequency, early_withdrawal_penalty_rate, lock_in_period_days, term_in_days,
contribution_frequency, min_contribution_amount, repayment_frequency, loan_penalty_rate,
min_deposit, max_deposit, min_withdrawal, max_withdrawal, minimum_balance, created_at, updated_at
FROM account_types WHERE id = $1`, id).Scan(
		&t.ID, &t.Name, &t.Family, &t.InterestRate, &t.InterestCalculationMethod,
		&t.InterestCalculationFreq, &t.EarlyWithdrawalPenaltyRate, &t.LockInPeriodDays, &t.TermInDays,
		&t.ContributionFrequency, &t.MinContributionAmount, &t.RepaymentFrequency, &t.LoanPenaltyRate,
		&t.MinDeposit, &t.MaxDeposit, &t.MinWithdrawal, &t.MaxWithdrawal, &t.MinimumBalance, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: get type %d: %w", id, err)
	}
	return &t, nil
}

// CreateAccount inserts a new account with its snapshot and returns the id.
func (r *Repository) CreateAccount(ctx context.Context, a *Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (
customer_id, account_type_id, balance, start_date, maturity_date, status,
daily_contribution, contribution_day, emi_due_day,
snapshot_interest_rate, snapshot_calculation_method, snapshot_calculation_frequency,
snapshot_penalty_rate, snapshot_lock_in_days, snapshot_contribution_frequency, snapshot_min_contribution,
snapshot_min_deposit, snapshot_max_deposit, snapshot_min_withdrawal, snapshot_max_withdrawal,
snapshot_minimum_balance, use_custom_parameters, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
RETURNING id`,
		a.CustomerID, a.AccountTypeID, a.Balance, a.StartDate, a.MaturityDate, a.Status,
		a.DailyContribution, a.ContributionDay, a.EMIDueDay,
		a.Snapshot.InterestRate, a.Snapshot.CalculationMethod, a.Snapshot.CalculationFrequency,
		a.Snapshot.EarlyWithdrawalPenaltyRate, a.Snapshot.LockInPeriodDays, a.Snapshot.ContributionFrequency, a.Snapshot.MinContributionAmount,
		a.Snapshot.MinDeposit, a.Snapshot.MaxDeposit, a.Snapshot.MinWithdrawal, a.Snapshot.MaxWithdrawal,
		a.Snapshot.MinimumBalance, a.UseCustomParameters, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("account: create: %w", err)
	}
	return id, nil
}

// SaveLoanActivation stores the loan snapshot taken when a loan account is
// disbursed.
func (r *Repository) SaveLoanActivation(ctx context.Context, id int64, principal, emiAmount float64, termMonths int, frequency string, penaltyRate float64, startDate time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET
balance = $2, snapshot_loan_principal = $3, snapshot_emi_amount = $4, snapshot_loan_term_months = $5,
snapshot_repayment_frequency = $6, snapshot_loan_penalty_rate = $7, start_date = $8, updated_at = now()
WHERE id = $1 AND status = 'active'`, id, -principal, principal, emiAmount, termMonths, frequency, penaltyRate, startDate)
	if err != nil {
		return fmt.Errorf("account: save loan activation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetCustomInterestRate applies an admin rate override.
func (r *Repository) SetCustomInterestRate(ctx context.Context, id int64, rate float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET custom_interest_rate = $2,
use_custom_parameters = TRUE, updated_at = now() WHERE id = $1`, id, rate)
	if err != nil {
		return fmt.Errorf("account: set custom rate %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TxRepository exposes the account mutations used inside break/transfer and
// repayment units of work.
type TxRepository interface {
	LockAccount(ctx context.Context, id int64) (*Account, error)
	LockActiveSavings(ctx context.Context, customerID int64) (*Account, error)
	GetSavingsType(ctx context.Context) (*AccountType, error)
	UpdateBalance(ctx context.Context, id int64, balance float64) error
	CloseAccount(ctx context.Context, id int64) error
	CreateAccount(ctx context.Context, a *Account) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps a transaction in the account mutation interface.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// LockAccount loads an account with a row lock held for the duration of the
// transaction. Concurrent accrual and user operations on the same account
// serialize here.
func (r *txRepo) LockAccount(ctx context.Context, id int64) (*Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.account_type_id
WHERE a.id = $1 FOR UPDATE OF a`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: lock %d: %w", id, err)
	}
	return a, nil
}

// LockActiveSavings loads the customer's active savings account under a row
// lock, or shared.ErrNotFound when the customer has none.
func (r *txRepo) LockActiveSavings(ctx context.Context, customerID int64) (*Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+`
FROM accounts a JOIN account_types t ON t.id = a.account_type_id
WHERE a.customer_id = $1 AND t.family = 'SAVINGS' AND a.status = 'active'
ORDER BY a.id LIMIT 1 FOR UPDATE OF a`, customerID)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: lock savings for customer %d: %w", customerID, err)
	}
	return a, nil
}

// GetSavingsType returns the savings account type, used when a break has to
// open a savings account on the fly.
func (r *txRepo) GetSavingsType(ctx context.Context) (*AccountType, error) {
	var t AccountType
	err := r.tx.QueryRow(ctx, `SELECT id, name, family, interest_rate, interest_calculation_method,
interest_calculation_frequency, early_withdrawal_penalty_rate, lock_in_period_days, term_in_days,
contribution_frequency, min_contribution_amount, repayment_frequency, loan_penalty_rate,
min_deposit, max_deposit, min_withdrawal, max_withdrawal, minimum_balance, created_at, updated_at
FROM account_types WHERE family = 'SAVINGS' ORDER BY id LIMIT 1`).Scan(
		&t.ID, &t.Name, &t.Family, &t.InterestRate, &t.InterestCalculationMethod,
		&t.InterestCalculationFreq, &t.EarlyWithdrawalPenaltyRate, &t.LockInPeriodDays, &t.TermInDays,
		&t.ContributionFrequency, &t.MinContributionAmount, &t.RepaymentFrequency, &t.LoanPenaltyRate,
		&t.MinDeposit, &t.MaxDeposit, &t.MinWithdrawal, &t.MaxWithdrawal, &t.MinimumBalance, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: get savings type: %w", err)
	}
	return &t, nil
}

func (r *txRepo) UpdateBalance(ctx context.Context, id int64, balance float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`, id, balance)
	if err != nil {
		return fmt.Errorf("account: update balance %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) CloseAccount(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounts SET status = 'closed', balance = 0, updated_at = now()
WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("account: close %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) CreateAccount(ctx context.Context, a *Account) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (
customer_id, account_type_id, balance, start_date, status,
snapshot_interest_rate, snapshot_calculation_method, snapshot_calculation_frequency,
snapshot_penalty_rate, snapshot_lock_in_days, snapshot_contribution_frequency, snapshot_min_contribution,
snapshot_min_deposit, snapshot_max_deposit, snapshot_min_withdrawal, snapshot_max_withdrawal,
snapshot_minimum_balance, use_custom_parameters, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
RETURNING id`,
		a.CustomerID, a.AccountTypeID, a.Balance, a.StartDate, a.Status,
		a.Snapshot.InterestRate, a.Snapshot.CalculationMethod, a.Snapshot.CalculationFrequency,
		a.Snapshot.EarlyWithdrawalPenaltyRate, a.Snapshot.LockInPeriodDays, a.Snapshot.ContributionFrequency, a.Snapshot.MinContributionAmount,
		a.Snapshot.MinDeposit, a.Snapshot.MaxDeposit, a.Snapshot.MinWithdrawal, a.Snapshot.MaxWithdrawal,
		a.Snapshot.MinimumBalance, a.UseCustomParameters, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("account: create in tx: %w", err)
	}
	return id, nil
}
