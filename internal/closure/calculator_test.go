package closure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/shared"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFixedTermMaturityOneYear(t *testing.T) {
	payout := FixedTermMaturity(100000, 6.75, 365, date(2025, time.January, 1), date(2026, time.January, 1))

	assert.Equal(t, 100000.0, payout.Principal)
	assert.InDelta(t, 6750.0, payout.InterestEarned, 0.01)
	assert.InDelta(t, 106750.0, payout.Transfer, 0.01)
	assert.Zero(t, payout.Penalty)
}

func TestFixedTermMaturityCompoundsYearly(t *testing.T) {
	payout := FixedTermMaturity(100000, 6.75, 730, date(2025, time.January, 1), date(2027, time.January, 1))

	// Year 1: 6750, year 2: 6.75% of 106750.
	assert.InDelta(t, 6750+106750*0.0675, payout.InterestEarned, 0.01)
	assert.InDelta(t, 100000+payout.InterestEarned, payout.Transfer, 0.01)
}

func TestFixedTermMaturityNormalizesLeapDrift(t *testing.T) {
	// A lock-in recorded as 366 calendar days is still one nominal year.
	payout := FixedTermMaturity(100000, 6.0, 366, date(2024, time.February, 1), date(2025, time.February, 1))
	assert.InDelta(t, 6000.0, payout.InterestEarned, 0.01)
}

func TestFixedTermPrematureOnStartDate(t *testing.T) {
	start := date(2025, time.January, 1)
	payout, err := FixedTermPremature(100000, 6.75, 0.5, 365, start, date(2026, time.January, 1), start)
	require.NoError(t, err)

	// Broken the day it opened: nothing earned, the full tenure forfeited.
	assert.Zero(t, payout.InterestEarned)
	assert.InDelta(t, 6750.0, payout.FutureInterestLost, 0.01)
	assert.InDelta(t, 33.75, payout.Penalty, 0.01)
	assert.InDelta(t, 100000-33.75, payout.Transfer, 0.01)
}

func TestFixedTermPrematureCountsInclusiveDays(t *testing.T) {
	start := date(2025, time.January, 1)
	payout, err := FixedTermPremature(100000, 6.75, 0.5, 365, start, date(2026, time.January, 1), start.AddDate(0, 0, 1))
	require.NoError(t, err)

	// One day after start counts both endpoints: two days of interest.
	assert.InDelta(t, 100000*6.75*2/(100*365), payout.InterestEarned, 0.01)
}

func TestFixedTermPrematureAfterAnniversary(t *testing.T) {
	start := date(2024, time.March, 10)
	payout, err := FixedTermPremature(100000, 8, 0.5, 730, start, date(2026, time.March, 10), date(2025, time.March, 10))
	require.NoError(t, err)

	// Exactly one completed year: its compounded interest, no pro-rata tail.
	assert.InDelta(t, 8000.0, payout.InterestEarned, 0.01)
	// One normalized year remains on the original principal.
	assert.InDelta(t, 100000*8*365/(100*365), payout.FutureInterestLost, 0.01)
}

func TestFixedTermPrematureRejectsClosureBeforeStart(t *testing.T) {
	start := date(2025, time.June, 1)
	_, err := FixedTermPremature(100000, 6.75, 0.5, 365, start, date(2026, time.June, 1), date(2025, time.May, 31))
	assert.ErrorIs(t, err, shared.ErrClosureBeforeStart)
}

func TestFixedTermPrematureTransferMonotonic(t *testing.T) {
	start := date(2025, time.January, 1)
	maturity := date(2027, time.January, 1)

	prev := -1.0
	for months := 0; months <= 23; months++ {
		closure := start.AddDate(0, months, 0)
		payout, err := FixedTermPremature(100000, 6.75, 0.5, 730, start, maturity, closure)
		require.NoError(t, err)
		// The later the break, the less future interest is forfeited.
		assert.GreaterOrEqual(t, payout.Transfer, prev, "closure at %s", closure.Format(time.DateOnly))
		prev = payout.Transfer
	}
}

func TestDailyDepositMaturity(t *testing.T) {
	payout := DailyDepositMaturity(40000, 100, date(2025, time.January, 1), date(2026, time.January, 1))

	assert.InDelta(t, 36500.0, payout.Principal, 0.01)
	assert.InDelta(t, 3500.0, payout.InterestEarned, 0.01)
	assert.Equal(t, 40000.0, payout.Transfer)
	assert.Zero(t, payout.Penalty)
}

func TestDailyDepositPrematureSimulatesRemainingDays(t *testing.T) {
	start := date(2025, time.January, 1)
	maturity := date(2026, time.January, 1)
	payout := DailyDepositPremature(1000, 100, 6.5, 0.5, start, maturity, date(2025, time.January, 11))

	// Ten days in: principal is the contributions to date.
	assert.InDelta(t, 1000.0, payout.Principal, 0.01)
	assert.Zero(t, payout.InterestEarned)
	assert.Greater(t, payout.FutureInterestLost, 0.0)
	assert.InDelta(t, payout.FutureInterestLost*0.5/100, payout.Penalty, 0.01)
	assert.InDelta(t, 1000-payout.Penalty, payout.Transfer, 0.01)
}

func TestDailyDepositPrematureAtMaturityForfeitsNothing(t *testing.T) {
	start := date(2025, time.January, 1)
	maturity := date(2026, time.January, 1)
	payout := DailyDepositPremature(40000, 100, 6.5, 0.5, start, maturity, maturity)

	assert.Zero(t, payout.FutureInterestLost)
	assert.Zero(t, payout.Penalty)
	assert.Equal(t, 40000.0, payout.Transfer)
}

func rdContributions(start time.Time, count int, amount float64) []accrual.Contribution {
	out := make([]accrual.Contribution, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, accrual.Contribution{
			Amount:      amount,
			DepositDate: start.AddDate(0, i, 0),
		})
	}
	return out
}

func TestRecurringMaturity(t *testing.T) {
	contributions := rdContributions(date(2025, time.January, 15), 5, 1000)
	payout := RecurringMaturity(contributions, 12)

	assert.Equal(t, 5000.0, payout.Principal)
	assert.Greater(t, payout.InterestEarned, 0.0)
	assert.InDelta(t, payout.Principal+payout.InterestEarned, payout.Transfer, 0.01)
	// Month-by-month compounding at 1% monthly.
	assert.InDelta(t, 152.02, payout.InterestEarned, 0.01)
}

func TestRecurringMaturityEmpty(t *testing.T) {
	payout := RecurringMaturity(nil, 12)
	assert.Zero(t, payout.Transfer)
	assert.Zero(t, payout.Principal)
}

func TestRecurringPrematureForfeitsFutureCycles(t *testing.T) {
	start := date(2025, time.January, 15)
	maturity := date(2026, time.January, 15)
	contributions := rdContributions(start, 4, 1000)

	payout := RecurringPremature(contributions, 12, 0.5, start, maturity, date(2025, time.April, 20))

	assert.Equal(t, 4000.0, payout.Principal)
	assert.Greater(t, payout.FutureInterestLost, 0.0)
	assert.InDelta(t, payout.FutureInterestLost*0.5/100, payout.Penalty, 0.01)
	assert.Greater(t, payout.Transfer, 0.0)
}

func TestRecurringPrematureOnContributionDay(t *testing.T) {
	start := date(2025, time.January, 15)
	maturity := date(2026, time.January, 15)
	contributions := rdContributions(start, 4, 1000)

	// Exactly on a contribution day there is no partial cycle left, so only
	// the complete remaining cycles are forfeited.
	onDay := RecurringPremature(contributions, 12, 0.5, start, maturity, date(2025, time.April, 15))
	dayBefore := RecurringPremature(contributions, 12, 0.5, start, maturity, date(2025, time.April, 14))

	assert.Greater(t, onDay.FutureInterestLost, 0.0)
	assert.Greater(t, dayBefore.FutureInterestLost, onDay.FutureInterestLost)
}

func TestRecurringPrematureTransferNonNegative(t *testing.T) {
	start := date(2025, time.June, 1)
	maturity := date(2026, time.June, 1)
	payout := RecurringPremature(nil, 12, 0.5, start, maturity, date(2025, time.June, 20))
	assert.GreaterOrEqual(t, payout.Transfer, 0.0)
}
