package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// batchConcurrency bounds how many accounts a run touches at once. Locks
// are held per account, never across the batch.
const batchConcurrency = 8

// AccountPort is the slice of the account module the engine reads.
type AccountPort interface {
	ListActiveByFamily(ctx context.Context, family account.Family, asOf time.Time) ([]account.Account, error)
}

// Posting is the unit of work an accrual run commits per account: append a
// log row, advance the watermark, and optionally credit the balance, all in
// one transaction.
type Posting struct {
	AccountID      int64
	Amount         float64
	BalanceBefore  float64
	BalanceAfter   float64
	CalculatedDate time.Time
	Watermark      time.Time
	CreditBalance  bool
}

// RepositoryPort defines accrual persistence.
type RepositoryPort interface {
	PostInterest(ctx context.Context, p Posting) error
	ListContributions(ctx context.Context, accountID int64, upTo time.Time) ([]Contribution, error)
}

// Engine runs the scheduled interest batches. Each family has its own
// cadence and formula; all of them are idempotent through the per-account
// watermark date.
type Engine struct {
	accounts AccountPort
	repo     RepositoryPort
	locker   *shared.AccountLocker
	logger   *slog.Logger
}

// NewEngine builds the accrual engine. locker may be nil in tests.
func NewEngine(accounts AccountPort, repo RepositoryPort, locker *shared.AccountLocker, logger *slog.Logger) *Engine {
	return &Engine{accounts: accounts, repo: repo, locker: locker, logger: logger}
}

// RunDaily accrues one day-granular interest posting for every active
// daily-compounding (DDS) account. Interest is credited into the balance,
// so it compounds across runs.
func (e *Engine) RunDaily(ctx context.Context, today time.Time) (RunReport, error) {
	today = daycount.Truncate(today)
	return e.forEach(ctx, account.FamilyDDS, today, func(ctx context.Context, a *account.Account) error {
		rate := a.EffectiveInterestRate()
		if rate <= 0 {
			return nil
		}
		periodStart := accrualPeriodStart(a)
		days := daycount.DaysBetween(periodStart, today)
		if days < 0 {
			// Future-dated account.
			return nil
		}
		if days == 0 {
			// First run on the start date still accrues one day.
			days = 1
		}
		dailyRate := rate / 100 / float64(daycount.DaysInYear(today.Year()))
		interest := money.Round2(a.Balance * dailyRate * float64(days))

		return e.repo.PostInterest(ctx, Posting{
			AccountID:      a.ID,
			Amount:         interest,
			BalanceBefore:  a.Balance,
			BalanceAfter:   a.Balance + interest,
			CalculatedDate: today,
			Watermark:      today,
			CreditBalance:  true,
		})
	})
}

// RunFixedTerm accrues simple interest for every active fixed-deposit
// account. The posting is audit-only: FD interest is realized at maturity
// or premature closure, never credited mid-term.
func (e *Engine) RunFixedTerm(ctx context.Context, today time.Time) (RunReport, error) {
	today = daycount.Truncate(today)
	return e.forEach(ctx, account.FamilyFD, today, func(ctx context.Context, a *account.Account) error {
		rate := a.EffectiveInterestRate()
		principal := a.Balance
		if rate <= 0 || principal <= 0 {
			return nil
		}
		periodStart := accrualPeriodStart(a)
		if periodStart.After(today) {
			return nil
		}
		// Both endpoints count: an FD accrues on its start date.
		totalDays := daycount.DaysBetween(periodStart, today) + 1
		if totalDays <= 0 {
			return nil
		}
		yearDays := daycount.DaysInYear(periodStart.Year())
		interest := money.Round2(principal * rate * float64(totalDays) / (100 * float64(yearDays)))

		return e.repo.PostInterest(ctx, Posting{
			AccountID:      a.ID,
			Amount:         interest,
			BalanceBefore:  principal,
			BalanceAfter:   principal,
			CalculatedDate: today,
			Watermark:      today,
		})
	})
}

// RunRecurring posts the prior calendar month's interest for every active
// recurring-deposit account. Each contribution earns from the later of its
// deposit date and the month start through monthEnd inclusive; the
// per-contribution amounts are summed into a single monthly posting. The
// cron schedule guards the cadence; the engine only needs the month-end
// date.
func (e *Engine) RunRecurring(ctx context.Context, monthEnd time.Time) (RunReport, error) {
	monthEnd = daycount.Truncate(monthEnd)
	monthStart := time.Date(monthEnd.Year(), monthEnd.Month(), 1, 0, 0, 0, 0, time.UTC)

	return e.forEach(ctx, account.FamilyRD, monthEnd, func(ctx context.Context, a *account.Account) error {
		rate := a.EffectiveInterestRate()
		if rate <= 0 {
			return nil
		}
		contributions, err := e.repo.ListContributions(ctx, a.ID, monthEnd)
		if err != nil {
			return err
		}
		total := recurringMonthInterest(contributions, rate, monthStart, monthEnd)
		if total <= 0 {
			return nil
		}
		total = money.Round2(total)

		return e.repo.PostInterest(ctx, Posting{
			AccountID:      a.ID,
			Amount:         total,
			BalanceBefore:  a.Balance,
			BalanceAfter:   a.Balance,
			CalculatedDate: monthEnd,
			Watermark:      monthEnd,
		})
	})
}

// recurringMonthInterest prorates each contribution's share of a single
// month at the daily rate derived from the month's year.
func recurringMonthInterest(contributions []Contribution, rate float64, monthStart, monthEnd time.Time) float64 {
	dailyRate := rate / 100 / float64(daycount.DaysInYear(monthStart.Year()))
	total := 0.0
	for _, c := range contributions {
		interestStart := c.DepositDate
		if interestStart.Before(monthStart) {
			interestStart = monthStart
		}
		days := daycount.DaysBetween(interestStart, monthEnd) + 1
		if days <= 0 {
			continue
		}
		total += c.Amount * dailyRate * float64(days)
	}
	return total
}

// accrualPeriodStart resolves where the next accrual window opens: the day
// after the watermark, or the account's start date on the first run.
func accrualPeriodStart(a *account.Account) time.Time {
	if a.LastInterestAt != nil {
		return daycount.Truncate(*a.LastInterestAt).AddDate(0, 0, 1)
	}
	return daycount.Truncate(a.StartDate)
}

// forEach fans a run out over all active accounts of a family. Failures
// are isolated: one account's error is counted and logged, and the batch
// keeps going.
func (e *Engine) forEach(ctx context.Context, family account.Family, asOf time.Time, fn func(context.Context, *account.Account) error) (RunReport, error) {
	accounts, err := e.accounts.ListActiveByFamily(ctx, family, asOf)
	if err != nil {
		return RunReport{}, fmt.Errorf("accrual: list %s accounts: %w", family, err)
	}

	var (
		mu     sync.Mutex
		report = RunReport{Processed: len(accounts)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i := range accounts {
		a := &accounts[i]
		g.Go(func() error {
			err := e.locker.WithLock(gctx, a.ID, func(ctx context.Context) error {
				return fn(ctx, a)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				e.logger.Error("accrual failed for account",
					slog.Int64("account_id", a.ID),
					slog.String("family", string(family)),
					slog.Any("error", err))
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("accrual run finished",
		slog.String("family", string(family)),
		slog.Time("as_of", asOf),
		slog.Int("processed", report.Processed),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed))
	return report, nil
}
