package closure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/shared"
)

type fakeAccounts struct {
	accounts map[int64]*account.Account
}

func (f *fakeAccounts) GetAccount(_ context.Context, id int64) (*account.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

type fakeContributions struct {
	rows []accrual.Contribution
}

func (f *fakeContributions) ListContributions(_ context.Context, _ int64, _ time.Time) ([]accrual.Contribution, error) {
	return f.rows, nil
}

type fakeTransferStore struct {
	lastIn *BreakTransfer
	result *BreakResult
	err    error
}

func (f *fakeTransferStore) BreakTransfer(_ context.Context, in BreakTransfer) (*BreakResult, error) {
	f.lastIn = &in
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &BreakResult{
		BrokenAccountID:  in.AccountID,
		SavingsAccountID: 900,
		Transfer:         in.Amount,
		SavingsBalance:   in.Amount,
	}, nil
}

type fakeNotifier struct {
	notices []BreakNotice
	err     error
}

func (f *fakeNotifier) AccountBroken(_ context.Context, notice BreakNotice) error {
	f.notices = append(f.notices, notice)
	return f.err
}

func termAccount(id int64, family account.Family, balance, rate float64, lockInDays int, start time.Time, maturity *time.Time) *account.Account {
	return &account.Account{
		ID:         id,
		CustomerID: 7,
		Type: account.AccountType{
			ID:                         3,
			Family:                     family,
			InterestRate:               rate,
			EarlyWithdrawalPenaltyRate: 0.5,
			LockInPeriodDays:           lockInDays,
		},
		Balance:      balance,
		StartDate:    start,
		MaturityDate: maturity,
		Status:       account.StatusActive,
	}
}

func newClosureFixture(accounts ...*account.Account) (*Service, *fakeAccounts, *fakeContributions, *fakeTransferStore, *fakeNotifier) {
	acc := &fakeAccounts{accounts: map[int64]*account.Account{}}
	for _, a := range accounts {
		acc.accounts[a.ID] = a
	}
	contribs := &fakeContributions{}
	store := &fakeTransferStore{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(acc, contribs, store, notifier, nil, logger)
	return svc, acc, contribs, store, notifier
}

func TestBreakMaturedFixedTermPaysMaturityAmount(t *testing.T) {
	start := date(2024, time.June, 1)
	maturity := date(2025, time.June, 1)
	a := termAccount(1, account.FamilyFD, 100000, 6.75, 365, start, &maturity)

	svc, _, _, store, notifier := newClosureFixture(a)
	svc.now = func() time.Time { return date(2025, time.June, 2) }

	result, err := svc.Break(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, store.lastIn)
	assert.InDelta(t, 106750.0, store.lastIn.Amount, 0.01)
	assert.Equal(t, "Account break - FD account broken and balance transferred to savings", store.lastIn.WithdrawalDescription)
	assert.Contains(t, store.lastIn.DepositDescription, "broken FD account 1")
	assert.Equal(t, int64(900), result.SavingsAccountID)

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, account.FamilyFD, notifier.notices[0].Family)
	assert.InDelta(t, 106750.0, notifier.notices[0].Transfer, 0.01)
	assert.Zero(t, notifier.notices[0].Penalty)
}

func TestBreakPrematureDailyDepositAppliesPenalty(t *testing.T) {
	start := date(2025, time.January, 1)
	maturity := date(2026, time.January, 1)
	a := termAccount(2, account.FamilyDDS, 1000, 6.5, 365, start, &maturity)
	a.DailyContribution = 100

	svc, _, _, store, notifier := newClosureFixture(a)
	svc.now = func() time.Time { return date(2025, time.January, 11) }

	_, err := svc.Break(context.Background(), 2)
	require.NoError(t, err)

	expected := DailyDepositPremature(1000, 100, 6.5, 0.5, start, maturity, date(2025, time.January, 11))
	require.NotNil(t, store.lastIn)
	assert.InDelta(t, expected.Transfer, store.lastIn.Amount, 0.01)
	assert.Less(t, store.lastIn.Amount, 1000.0)
	assert.Contains(t, store.lastIn.WithdrawalDescription, "Premature DDS break")

	require.Len(t, notifier.notices, 1)
	assert.Greater(t, notifier.notices[0].Penalty, 0.0)
}

func TestBreakRecurringReplaysContributions(t *testing.T) {
	start := date(2025, time.January, 15)
	maturity := date(2026, time.January, 15)
	a := termAccount(3, account.FamilyRD, 4000, 12, 365, start, &maturity)

	svc, _, contribs, store, _ := newClosureFixture(a)
	contribs.rows = rdContributions(start, 4, 1000)
	svc.now = func() time.Time { return date(2025, time.April, 20) }

	_, err := svc.Break(context.Background(), 3)
	require.NoError(t, err)

	expected := RecurringPremature(contribs.rows, 12, 0.5, start, maturity, date(2025, time.April, 20))
	require.NotNil(t, store.lastIn)
	assert.InDelta(t, expected.Transfer, store.lastIn.Amount, 0.01)
	assert.Contains(t, store.lastIn.WithdrawalDescription, "Premature RD break")
}

func TestBreakRejectsNonTermFamily(t *testing.T) {
	a := termAccount(4, account.FamilySavings, 5000, 3.5, 0, date(2025, time.January, 1), nil)
	svc, _, _, store, _ := newClosureFixture(a)

	_, err := svc.Break(context.Background(), 4)
	assert.ErrorIs(t, err, shared.ErrWrongAccountFamily)
	assert.Nil(t, store.lastIn)
}

func TestBreakRejectsClosedAccount(t *testing.T) {
	maturity := date(2026, time.January, 1)
	a := termAccount(5, account.FamilyFD, 0, 6.75, 365, date(2025, time.January, 1), &maturity)
	a.Status = account.StatusClosed

	svc, _, _, _, _ := newClosureFixture(a)
	_, err := svc.Break(context.Background(), 5)
	assert.ErrorIs(t, err, shared.ErrAccountClosed)
}

func TestBreakSurvivesNotifierFailure(t *testing.T) {
	start := date(2024, time.June, 1)
	maturity := date(2025, time.June, 1)
	a := termAccount(6, account.FamilyFD, 100000, 6.75, 365, start, &maturity)

	svc, _, _, _, notifier := newClosureFixture(a)
	notifier.err = errors.New("smtp down")
	svc.now = func() time.Time { return date(2025, time.July, 1) }

	result, err := svc.Break(context.Background(), 6)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestBreakPropagatesStoreError(t *testing.T) {
	start := date(2024, time.June, 1)
	maturity := date(2025, time.June, 1)
	a := termAccount(7, account.FamilyFD, 100000, 6.75, 365, start, &maturity)

	svc, _, _, store, notifier := newClosureFixture(a)
	store.err = errors.New("deadlock detected")
	svc.now = func() time.Time { return date(2025, time.July, 1) }

	_, err := svc.Break(context.Background(), 7)
	assert.ErrorContains(t, err, "deadlock detected")
	assert.Empty(t, notifier.notices)
}

func TestPrematureClosureDefaultsToToday(t *testing.T) {
	start := date(2025, time.January, 1)
	maturity := date(2026, time.January, 1)
	a := termAccount(8, account.FamilyFD, 100000, 6.75, 365, start, &maturity)

	svc, _, _, _, _ := newClosureFixture(a)
	svc.now = func() time.Time { return date(2025, time.March, 1) }

	defaulted, err := svc.PrematureClosure(context.Background(), 8, time.Time{})
	require.NoError(t, err)
	explicit, err := svc.PrematureClosure(context.Background(), 8, date(2025, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, explicit, defaulted)
	assert.Greater(t, defaulted.Penalty, 0.0)
}

func TestMaturityPayoutRecurring(t *testing.T) {
	start := date(2025, time.January, 15)
	maturity := date(2026, time.January, 15)
	a := termAccount(9, account.FamilyRD, 5000, 12, 365, start, &maturity)

	svc, _, contribs, _, _ := newClosureFixture(a)
	contribs.rows = rdContributions(start, 5, 1000)

	payout, err := svc.MaturityPayout(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, payout.Principal)
	assert.InDelta(t, 152.02, payout.InterestEarned, 0.01)
}
