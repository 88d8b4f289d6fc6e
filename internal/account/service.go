package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountType(ctx context.Context, id int64) (*AccountType, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Account, error)
	CreateAccount(ctx context.Context, a *Account) (int64, error)
	SetCustomInterestRate(ctx context.Context, id int64, rate float64) error
}

// OpenInput carries the parameters for opening an account.
type OpenInput struct {
	CustomerID        int64
	AccountTypeID     int64
	InitialBalance    float64
	StartDate         time.Time
	TermDays          int // overrides the type default tenure when > 0
	DailyContribution float64
	ContributionDay   int
	EMIDueDay         *int
	CreatedBy         int64
}

// Service handles account lifecycle outside the closure and loan flows.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the account service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Open creates an account, capturing the type parameter snapshot atomically
// with the row. Term families get their maturity date from the tenure.
func (s *Service) Open(ctx context.Context, input OpenInput) (*Account, error) {
	if input.CustomerID == 0 {
		return nil, fmt.Errorf("account: customer id required: %w", shared.ErrInvalidAmount)
	}
	if input.InitialBalance < 0 {
		return nil, fmt.Errorf("account: initial balance must not be negative: %w", shared.ErrInvalidAmount)
	}
	t, err := s.repo.GetAccountType(ctx, input.AccountTypeID)
	if err != nil {
		return nil, err
	}
	if !t.Family.Valid() {
		return nil, fmt.Errorf("account: type %q has unknown family %q", t.Name, t.Family)
	}

	start := input.StartDate
	if start.IsZero() {
		start = s.now()
	}
	start = daycount.Truncate(start)

	a := &Account{
		CustomerID:        input.CustomerID,
		AccountTypeID:     t.ID,
		Type:              *t,
		Balance:           money.Round2(input.InitialBalance),
		StartDate:         start,
		Status:            StatusActive,
		DailyContribution: input.DailyContribution,
		ContributionDay:   input.ContributionDay,
		EMIDueDay:         input.EMIDueDay,
		Snapshot:          SnapshotFrom(*t),
		CreatedBy:         input.CreatedBy,
		CreatedAt:         s.now(),
		UpdatedAt:         s.now(),
	}

	if t.Family.Term() {
		termDays := input.TermDays
		if termDays <= 0 {
			termDays = t.TermInDays
		}
		if termDays <= 0 {
			termDays = 365
		}
		maturity := start.AddDate(0, 0, termDays)
		a.MaturityDate = &maturity
		a.Snapshot.LockInPeriodDays = &termDays
	}
	if t.Family == FamilyLoan {
		// Loans open flat; balance goes negative on disbursal.
		a.Balance = 0
	}

	id, err := s.repo.CreateAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	s.logger.Info("account opened",
		slog.Int64("account_id", id),
		slog.String("family", string(t.Family)),
		slog.Float64("balance", a.Balance))
	return a, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListForCustomer returns a customer's accounts.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64) ([]Account, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// OverrideInterestRate applies an admin rate override that supersedes the
// snapshot from the next accrual run onward.
func (s *Service) OverrideInterestRate(ctx context.Context, id int64, rate float64) error {
	if rate < 0 {
		return fmt.Errorf("account: rate must not be negative: %w", shared.ErrInvalidAmount)
	}
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if !a.Active() {
		return shared.ErrAccountClosed
	}
	if err := s.repo.SetCustomInterestRate(ctx, id, rate); err != nil {
		return err
	}
	s.logger.Info("interest rate override applied",
		slog.Int64("account_id", id),
		slog.Float64("rate", rate))
	return nil
}
