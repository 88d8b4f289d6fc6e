package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// ServiceAccountPort extends the engine's account view with single-account
// lookup for contribution and log queries.
type ServiceAccountPort interface {
	GetAccount(ctx context.Context, id int64) (*account.Account, error)
}

// ServiceRepositoryPort is the persistence surface of the user-facing
// accrual operations.
type ServiceRepositoryPort interface {
	InsertContribution(ctx context.Context, c *Contribution) (int64, error)
	ListContributions(ctx context.Context, accountID int64, upTo time.Time) ([]Contribution, error)
	ListInterestLogs(ctx context.Context, accountID int64, from, to *time.Time) ([]InterestLog, error)
}

// Service owns contribution recording and interest-log queries.
type Service struct {
	accounts ServiceAccountPort
	repo     ServiceRepositoryPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the accrual service.
func NewService(accounts ServiceAccountPort, repo ServiceRepositoryPort, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, repo: repo, logger: logger, now: time.Now}
}

// RecordContribution appends a recurring-deposit installment. Contributions
// are the principal base replayed by the monthly accrual and the closure
// simulations.
func (s *Service) RecordContribution(ctx context.Context, accountID int64, amount float64, depositDate time.Time) (*Contribution, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("accrual: contribution must be positive: %w", shared.ErrInvalidAmount)
	}
	a, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.Family() != account.FamilyRD {
		return nil, shared.ErrWrongAccountFamily
	}
	if !a.Active() {
		return nil, shared.ErrAccountClosed
	}
	if depositDate.IsZero() {
		depositDate = s.now()
	}
	c := &Contribution{
		AccountID:   accountID,
		Amount:      amount,
		DepositDate: daycount.Truncate(depositDate),
	}
	id, err := s.repo.InsertContribution(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	s.logger.Info("contribution recorded",
		slog.Int64("account_id", accountID),
		slog.Float64("amount", amount),
		slog.Time("deposit_date", c.DepositDate))
	return c, nil
}

// Contributions lists an account's installments in deposit order.
func (s *Service) Contributions(ctx context.Context, accountID int64) ([]Contribution, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListContributions(ctx, accountID, time.Time{})
}

// InterestLogs lists interest postings, optionally bounded by calculated
// date.
func (s *Service) InterestLogs(ctx context.Context, accountID int64, from, to *time.Time) ([]InterestLog, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListInterestLogs(ctx, accountID, from, to)
}
