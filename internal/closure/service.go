package closure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// AccountPort is the account view the calculator dispatch needs.
type AccountPort interface {
	GetAccount(ctx context.Context, id int64) (*account.Account, error)
}

// ContributionPort supplies RD installments for the replay simulations.
type ContributionPort interface {
	ListContributions(ctx context.Context, accountID int64, upTo time.Time) ([]accrual.Contribution, error)
}

// TransferStore commits the break unit of work: zero and close the broken
// account, credit the payout into the customer's savings account (creating
// one if needed), and append the withdrawal/deposit entry pair.
type TransferStore interface {
	BreakTransfer(ctx context.Context, in BreakTransfer) (*BreakResult, error)
}

// Notifier is the fire-and-forget notification hook invoked after a
// successful break. Implementations enqueue mail; a nil notifier disables
// it.
type Notifier interface {
	AccountBroken(ctx context.Context, notice BreakNotice) error
}

// BreakTransfer describes the movement the store must commit.
type BreakTransfer struct {
	AccountID             int64
	CustomerID            int64
	Amount                float64
	WithdrawalDescription string
	DepositDescription    string
}

// BreakResult reports the committed break.
type BreakResult struct {
	BrokenAccountID     int64   `json:"brokenAccountId"`
	SavingsAccountID    int64   `json:"savingsAccountId"`
	Transfer            float64 `json:"transfer"`
	SavingsBalance      float64 `json:"savingsBalance"`
	WithdrawalReference string  `json:"withdrawalReference"`
	DepositReference    string  `json:"depositReference"`
}

// BreakNotice is the payload handed to the notifier.
type BreakNotice struct {
	AccountID        int64
	CustomerID       int64
	Family           account.Family
	Transfer         float64
	Penalty          float64
	SavingsAccountID int64
}

// Service computes payouts and orchestrates account breaks.
type Service struct {
	accounts      AccountPort
	contributions ContributionPort
	store         TransferStore
	notifier      Notifier
	locker        *shared.AccountLocker
	logger        *slog.Logger
	now           func() time.Time
}

// NewService builds the closure service. notifier and locker may be nil.
func NewService(accounts AccountPort, contributions ContributionPort, store TransferStore, notifier Notifier, locker *shared.AccountLocker, logger *slog.Logger) *Service {
	return &Service{
		accounts:      accounts,
		contributions: contributions,
		store:         store,
		notifier:      notifier,
		locker:        locker,
		logger:        logger,
		now:           time.Now,
	}
}

// MaturityPayout computes the payout for an account that reached its
// maturity date.
func (s *Service) MaturityPayout(ctx context.Context, accountID int64) (Payout, error) {
	a, err := s.breakable(ctx, accountID)
	if err != nil {
		return Payout{}, err
	}
	return s.maturityPayout(ctx, a)
}

// PrematureClosure computes the payout, with penalty, for closing before
// maturity. A zero closure date means today.
func (s *Service) PrematureClosure(ctx context.Context, accountID int64, closureDate time.Time) (Payout, error) {
	a, err := s.breakable(ctx, accountID)
	if err != nil {
		return Payout{}, err
	}
	if closureDate.IsZero() {
		closureDate = s.now()
	}
	return s.prematurePayout(ctx, a, daycount.Truncate(closureDate))
}

// Break closes a term account and transfers the payout into the customer's
// savings account as a withdrawal/deposit pair. Matured accounts get the
// maturity payout; everything else pays the premature-closure amount.
func (s *Service) Break(ctx context.Context, accountID int64) (*BreakResult, error) {
	a, err := s.breakable(ctx, accountID)
	if err != nil {
		return nil, err
	}
	today := daycount.Truncate(s.now())

	var payout Payout
	if a.Matured(today) {
		payout, err = s.maturityPayout(ctx, a)
	} else {
		payout, err = s.prematurePayout(ctx, a, today)
	}
	if err != nil {
		return nil, err
	}
	transfer := money.Round2(money.NonNegative(payout.Transfer))

	in := BreakTransfer{
		AccountID:             a.ID,
		CustomerID:            a.CustomerID,
		Amount:                transfer,
		WithdrawalDescription: s.withdrawalDescription(a, payout, transfer),
		DepositDescription:    fmt.Sprintf("Balance transfer from broken %s account %d", a.Family(), a.ID),
	}

	var result *BreakResult
	err = s.locker.WithLock(ctx, a.ID, func(ctx context.Context) error {
		var err error
		result, err = s.store.BreakTransfer(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account broken",
		slog.Int64("account_id", a.ID),
		slog.String("family", string(a.Family())),
		slog.Float64("transfer", transfer),
		slog.Float64("penalty", payout.Penalty),
		slog.Int64("savings_account_id", result.SavingsAccountID))

	if s.notifier != nil {
		notice := BreakNotice{
			AccountID:        a.ID,
			CustomerID:       a.CustomerID,
			Family:           a.Family(),
			Transfer:         transfer,
			Penalty:          payout.Penalty,
			SavingsAccountID: result.SavingsAccountID,
		}
		if err := s.notifier.AccountBroken(ctx, notice); err != nil {
			// Notification failures never fail the break.
			s.logger.Warn("break notification enqueue failed",
				slog.Int64("account_id", a.ID), slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Service) breakable(ctx context.Context, accountID int64) (*account.Account, error) {
	a, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !a.Family().Term() {
		return nil, fmt.Errorf("closure: %s accounts cannot be broken: %w", a.Family(), shared.ErrWrongAccountFamily)
	}
	if !a.Active() {
		return nil, shared.ErrAccountClosed
	}
	return a, nil
}

func (s *Service) maturityPayout(ctx context.Context, a *account.Account) (Payout, error) {
	maturity := s.maturityDate(a)
	switch a.Family() {
	case account.FamilyFD:
		return FixedTermMaturity(a.Balance, a.EffectiveInterestRate(), a.EffectiveLockInDays(), a.StartDate, maturity), nil
	case account.FamilyDDS:
		return DailyDepositMaturity(a.Balance, a.DailyContribution, a.StartDate, maturity), nil
	case account.FamilyRD:
		contributions, err := s.contributions.ListContributions(ctx, a.ID, time.Time{})
		if err != nil {
			return Payout{}, err
		}
		return RecurringMaturity(contributions, a.EffectiveInterestRate()), nil
	}
	return Payout{}, shared.ErrWrongAccountFamily
}

func (s *Service) prematurePayout(ctx context.Context, a *account.Account, closureDate time.Time) (Payout, error) {
	maturity := s.maturityDate(a)
	rate := a.EffectiveInterestRate()
	penaltyRate := a.EffectivePenaltyRate()

	switch a.Family() {
	case account.FamilyFD:
		return FixedTermPremature(a.Balance, rate, penaltyRate, a.EffectiveLockInDays(), a.StartDate, maturity, closureDate)
	case account.FamilyDDS:
		return DailyDepositPremature(a.Balance, a.DailyContribution, rate, penaltyRate, a.StartDate, maturity, closureDate), nil
	case account.FamilyRD:
		contributions, err := s.contributions.ListContributions(ctx, a.ID, time.Time{})
		if err != nil {
			return Payout{}, err
		}
		return RecurringPremature(contributions, rate, penaltyRate, a.StartDate, maturity, closureDate), nil
	}
	return Payout{}, shared.ErrWrongAccountFamily
}

// maturityDate resolves the contractual maturity, reconstructing it from
// the lock-in tenure when the column was never set.
func (s *Service) maturityDate(a *account.Account) time.Time {
	if a.MaturityDate != nil {
		return daycount.Truncate(*a.MaturityDate)
	}
	days := a.EffectiveLockInDays()
	if days <= 0 {
		days = 365
	}
	return daycount.Truncate(a.StartDate).AddDate(0, 0, days)
}

func (s *Service) withdrawalDescription(a *account.Account, payout Payout, transfer float64) string {
	switch a.Family() {
	case account.FamilyDDS, account.FamilyRD:
		return fmt.Sprintf("Premature %s break - penalty: %.2f, net credited: %.2f", a.Family(), payout.Penalty, transfer)
	default:
		return fmt.Sprintf("Account break - %s account broken and balance transferred to savings", a.Family())
	}
}
