package loan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// paymentTolerance absorbs rounding drift when matching a payment against an
// installment amount: anything within 5% of the EMI settles it in full, and
// at least 95% settles it as a partial payment.
const paymentTolerance = 0.05

// AccountPort is the slice of the account module the scheduler needs.
type AccountPort interface {
	GetAccount(ctx context.Context, id int64) (*account.Account, error)
	SaveLoanActivation(ctx context.Context, id int64, principal, emiAmount float64, termMonths int, frequency string, penaltyRate float64, startDate time.Time) error
}

// RepositoryPort defines installment persistence.
type RepositoryPort interface {
	CountInstallments(ctx context.Context, accountID int64) (int, error)
	InsertSchedule(ctx context.Context, accountID int64, installments []Installment) error
	ListSchedule(ctx context.Context, accountID int64) ([]Installment, error)
	ListUnpaid(ctx context.Context, accountID int64) ([]Installment, error)
	MarkPaid(ctx context.Context, installmentID int64, amount float64, paidDate time.Time, ledgerEntryID *int64) error
	RefreshOverdue(ctx context.Context, accountID int64, asOf time.Time) error
}

// Service owns the amortization schedule lifecycle.
type Service struct {
	accounts AccountPort
	repo     RepositoryPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the loan service.
func NewService(accounts AccountPort, repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{accounts: accounts, repo: repo, logger: logger, now: time.Now}
}

// Activate disburses a loan: it snapshots the loan parameters, computes the
// EMI, sets the balance to the negative principal and generates the
// schedule.
func (s *Service) Activate(ctx context.Context, accountID int64, principal float64, termMonths int) (*account.Account, error) {
	if principal <= 0 {
		return nil, fmt.Errorf("loan: principal must be positive: %w", shared.ErrInvalidAmount)
	}
	a, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.Family() != account.FamilyLoan {
		return nil, shared.ErrWrongAccountFamily
	}
	if !a.Active() {
		return nil, shared.ErrAccountClosed
	}
	if a.Balance != 0 {
		return nil, fmt.Errorf("loan: account %d already has an outstanding balance", accountID)
	}

	if termMonths <= 0 {
		if a.Type.TermInDays > 0 {
			termMonths = int(float64(a.Type.TermInDays)/30.44 + 0.5)
		}
		if termMonths <= 0 {
			termMonths = 12
		}
	}
	rate := a.EffectiveInterestRate()
	emi, err := ComputeEMI(principal, rate, termMonths)
	if err != nil {
		return nil, err
	}

	frequency := a.LoanRepaymentFrequency()
	penaltyRate := a.Type.LoanPenaltyRate
	if penaltyRate <= 0 {
		penaltyRate = 5.0
	}
	startDate := daycount.Truncate(s.now())
	if err := s.accounts.SaveLoanActivation(ctx, accountID, principal, emi, termMonths, frequency, penaltyRate, startDate); err != nil {
		return nil, err
	}
	s.logger.Info("loan activated",
		slog.Int64("account_id", accountID),
		slog.Float64("principal", principal),
		slog.Float64("emi", emi),
		slog.Int("term_months", termMonths))

	if _, err := s.GenerateSchedule(ctx, accountID); err != nil {
		return nil, err
	}
	return s.accounts.GetAccount(ctx, accountID)
}

// GenerateSchedule creates the full installment set for an activated loan.
// Generation is idempotent: when installments already exist (checked by
// count so retries converge) the call is a no-op.
func (s *Service) GenerateSchedule(ctx context.Context, accountID int64) (GenerateResult, error) {
	a, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if a.Family() != account.FamilyLoan {
		return "", shared.ErrWrongAccountFamily
	}

	existing, err := s.repo.CountInstallments(ctx, accountID)
	if err != nil {
		return "", err
	}
	if existing > 0 {
		s.logger.Info("installments already exist, skipping generation",
			slog.Int64("account_id", accountID), slog.Int("count", existing))
		return ResultAlreadyExists, nil
	}

	principal := a.LoanPrincipal()
	if principal <= 0 {
		return "", fmt.Errorf("loan: account %d has no principal: %w", accountID, shared.ErrInvalidAmount)
	}
	if a.Snapshot.EMIAmount == nil || *a.Snapshot.EMIAmount <= 0 {
		return "", fmt.Errorf("loan: account %d has no EMI amount: %w", accountID, shared.ErrInvalidAmount)
	}
	if a.Snapshot.LoanTermMonths == nil || *a.Snapshot.LoanTermMonths <= 0 {
		return "", fmt.Errorf("loan: account %d has no term: %w", accountID, shared.ErrInvalidAmount)
	}

	installments, err := BuildSchedule(ScheduleParams{
		Principal:  principal,
		AnnualRate: a.EffectiveInterestRate(),
		EMIAmount:  *a.Snapshot.EMIAmount,
		TermMonths: *a.Snapshot.LoanTermMonths,
		StartDate:  a.StartDate,
		DueDay:     a.DueDay(),
		Frequency:  a.LoanRepaymentFrequency(),
	})
	if err != nil {
		return "", err
	}

	if err := s.repo.InsertSchedule(ctx, accountID, installments); err != nil {
		return "", err
	}
	s.logger.Info("installment schedule generated",
		slog.Int64("account_id", accountID),
		slog.Int("installments", len(installments)))
	return ResultGenerated, nil
}

// Schedule returns the installments with the overdue flag recomputed as of
// today.
func (s *Service) Schedule(ctx context.Context, accountID int64) ([]Installment, error) {
	installments, err := s.repo.ListSchedule(ctx, accountID)
	if err != nil {
		return nil, err
	}
	today := daycount.Truncate(s.now())
	for i := range installments {
		installments[i].Overdue = installments[i].ComputeOverdue(today)
	}
	return installments, nil
}

// ApplyPayment consumes a repayment against unpaid installments in due-date
// order. An installment is settled in full when the remaining payment is
// within 5% of its EMI; a remainder of at least 95% settles it partially and
// stops. Anything smaller settles nothing and the call is a no-op, not an
// error. The triggering ledger entry is linked to the first installment
// settled in this call only. Returns the number of installments marked paid.
func (s *Service) ApplyPayment(ctx context.Context, accountID int64, amount float64, paidDate time.Time, ledgerEntryID int64) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("loan: payment must be positive: %w", shared.ErrInvalidAmount)
	}
	unpaid, err := s.repo.ListUnpaid(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(unpaid) == 0 {
		s.logger.Warn("no unpaid installments for repayment", slog.Int64("account_id", accountID))
		return 0, nil
	}
	if paidDate.IsZero() {
		paidDate = s.now()
	}
	paidDate = daycount.Truncate(paidDate)

	remaining := amount
	marked := 0
	for _, inst := range unpaid {
		if remaining <= 0 {
			break
		}
		tolerance := inst.EMIAmount * paymentTolerance
		var entryRef *int64
		if marked == 0 {
			entryRef = &ledgerEntryID
		}
		if remaining >= inst.EMIAmount-tolerance {
			if err := s.repo.MarkPaid(ctx, inst.ID, inst.EMIAmount, paidDate, entryRef); err != nil {
				return marked, err
			}
			remaining -= inst.EMIAmount
			marked++
			continue
		}
		// Shares its threshold with the full-settlement branch above, so a
		// within-tolerance shortfall never lands here.
		if remaining >= inst.EMIAmount*(1-paymentTolerance) {
			if err := s.repo.MarkPaid(ctx, inst.ID, remaining, paidDate, entryRef); err != nil {
				return marked, err
			}
			marked++
		}
		break
	}

	if err := s.repo.RefreshOverdue(ctx, accountID, daycount.Truncate(s.now())); err != nil {
		return marked, err
	}
	if marked > 0 {
		s.logger.Info("installments settled",
			slog.Int64("account_id", accountID),
			slog.Int("count", marked),
			slog.Float64("amount", amount))
	}
	return marked, nil
}

// OutstandingCount returns how many installments remain unpaid.
func (s *Service) OutstandingCount(ctx context.Context, accountID int64) (int, error) {
	unpaid, err := s.repo.ListUnpaid(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return len(unpaid), nil
}
