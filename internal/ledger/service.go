package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridianbank/meridianbank/internal/shared"
)

// RepositoryPort defines entry persistence.
type RepositoryPort interface {
	PostEntry(ctx context.Context, accountID int64, entryType EntryType, amount float64, description, reference string) (*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListByAccount(ctx context.Context, accountID int64) ([]Entry, error)
	CloseSettledLoan(ctx context.Context, accountID int64) (bool, error)
}

// InstallmentMarker is the slice of the loan module a repayment entry
// triggers. Keeping it an interface avoids a ledger -> loan dependency.
type InstallmentMarker interface {
	ApplyPayment(ctx context.Context, accountID int64, amount float64, paidDate time.Time, ledgerEntryID int64) (int, error)
	OutstandingCount(ctx context.Context, accountID int64) (int, error)
}

// PostInput describes one movement to post.
type PostInput struct {
	AccountID   int64
	Type        EntryType
	Amount      float64
	Description string
	Reference   string
}

// PostResult is the outcome of posting an entry, including any loan side
// effects a repayment triggered.
type PostResult struct {
	Entry               *Entry `json:"entry"`
	InstallmentsSettled int    `json:"installmentsSettled"`
	LoanClosed          bool   `json:"loanClosed"`
}

// Service posts ledger entries and fans repayments into the loan schedule.
type Service struct {
	repo    RepositoryPort
	loans   InstallmentMarker
	locker  *shared.AccountLocker
	logger  *slog.Logger
	printer *message.Printer
	now     func() time.Time
}

// NewService builds the ledger service. locker may be nil in tests.
func NewService(repo RepositoryPort, loans InstallmentMarker, locker *shared.AccountLocker, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		loans:   loans,
		locker:  locker,
		logger:  logger,
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// Post appends one ledger entry and applies its balance change. A
// loan-repayment entry additionally consumes unpaid installments and closes
// the loan once the last one settles.
func (s *Service) Post(ctx context.Context, in PostInput) (*PostResult, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("ledger: unknown entry type %q", in.Type)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("ledger: amount must be positive: %w", shared.ErrInvalidAmount)
	}
	if in.Reference == "" {
		in.Reference = NewReference(s.now())
	}
	if in.Description == "" {
		in.Description = s.describe(in.Type, in.Amount)
	}

	var entry *Entry
	err := s.locker.WithLock(ctx, in.AccountID, func(ctx context.Context) error {
		var err error
		entry, err = s.repo.PostEntry(ctx, in.AccountID, in.Type, in.Amount, in.Description, in.Reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ledger entry posted",
		slog.Int64("account_id", in.AccountID),
		slog.String("type", string(in.Type)),
		slog.Float64("amount", in.Amount),
		slog.String("reference", entry.Reference))

	result := &PostResult{Entry: entry}
	if in.Type == TypeLoanRepayment {
		s.settleInstallments(ctx, entry, result)
	}
	return result, nil
}

// settleInstallments applies a repayment against the loan schedule. A
// failure here does not undo the posted entry; the entry stands and the
// schedule catches up on the next repayment.
func (s *Service) settleInstallments(ctx context.Context, entry *Entry, result *PostResult) {
	marked, err := s.loans.ApplyPayment(ctx, entry.AccountID, entry.Amount, entry.CreatedAt, entry.ID)
	if err != nil {
		s.logger.Warn("repayment posted but installment settlement failed",
			slog.Int64("account_id", entry.AccountID),
			slog.Int64("entry_id", entry.ID),
			slog.Any("error", err))
		return
	}
	result.InstallmentsSettled = marked
	if marked == 0 {
		return
	}

	outstanding, err := s.loans.OutstandingCount(ctx, entry.AccountID)
	if err != nil {
		s.logger.Warn("outstanding count failed after repayment",
			slog.Int64("account_id", entry.AccountID), slog.Any("error", err))
		return
	}
	if outstanding == 0 {
		closed, err := s.repo.CloseSettledLoan(ctx, entry.AccountID)
		if err != nil {
			s.logger.Warn("loan close after final repayment failed",
				slog.Int64("account_id", entry.AccountID), slog.Any("error", err))
			return
		}
		result.LoanClosed = closed
		if closed {
			s.logger.Info("loan fully repaid and closed", slog.Int64("account_id", entry.AccountID))
		}
	}
}

// Entries lists an account's ledger, newest first.
func (s *Service) Entries(ctx context.Context, accountID int64) ([]Entry, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// Entry loads a single entry.
func (s *Service) Entry(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

var entryLabels = map[EntryType]string{
	TypeDeposit:       "Deposit",
	TypeWithdrawal:    "Withdrawal",
	TypeInterest:      "Interest credit",
	TypePenalty:       "Penalty",
	TypeLoanDisbursal: "Loan disbursal",
	TypeLoanRepayment: "Loan repayment",
}

func (s *Service) describe(t EntryType, amount float64) string {
	return s.printer.Sprintf("%s of %.2f", entryLabels[t], amount)
}
