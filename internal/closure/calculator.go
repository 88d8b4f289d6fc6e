package closure

import (
	"fmt"
	"time"

	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// rdCycleDays is the nominal length of one recurring-deposit contribution
// cycle, used to prorate a partial month.
const rdCycleDays = 30.24

// Payout is the breakdown both calculator entry points produce. Transfer
// is clamped non-negative; the caller decides whether a zero payout still
// permits closure.
type Payout struct {
	Principal          float64 `json:"principal"`
	InterestEarned     float64 `json:"interestEarned"`
	FutureInterestLost float64 `json:"futureInterestLost"`
	Penalty            float64 `json:"penalty"`
	Transfer           float64 `json:"transfer"`
}

func (p Payout) rounded() Payout {
	return Payout{
		Principal:          money.Round2(p.Principal),
		InterestEarned:     money.Round2(p.InterestEarned),
		FutureInterestLost: money.Round2(p.FutureInterestLost),
		Penalty:            money.Round2(p.Penalty),
		Transfer:           money.Round2(money.NonNegative(p.Transfer)),
	}
}

// normalizedTenureDays converts a lock-in period to whole 365-day years.
// The normalization decouples the payout from calendar leap-day drift:
// a "1 year" deposit is worth exactly 365 interest days regardless of when
// it was opened.
func normalizedTenureDays(lockInDays int, startDate, maturityDate time.Time) int {
	days := lockInDays
	if days <= 0 {
		days = daycount.DaysBetween(startDate, maturityDate)
	}
	years := int(float64(days)/365.25 + 0.5)
	return years * 365
}

// completedAnniversaryYears counts whole calendar years between the start
// date and asOf, anniversary-based.
func completedAnniversaryYears(startDate, asOf time.Time) int {
	years := asOf.Year() - startDate.Year()
	if asOf.Month() < startDate.Month() ||
		(asOf.Month() == startDate.Month() && asOf.Day() < startDate.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}

func anniversary(startDate time.Time, years int) time.Time {
	year := startDate.Year() + years
	day := daycount.ClampDay(year, startDate.Month(), startDate.Day())
	return time.Date(year, startDate.Month(), day, 0, 0, 0, 0, time.UTC)
}

// FixedTermMaturity compounds a fixed deposit year-by-year over its
// normalized tenure, then adds pro-rata simple interest for any leftover
// days.
func FixedTermMaturity(principal, rate float64, lockInDays int, startDate, maturityDate time.Time) Payout {
	tenureDays := normalizedTenureDays(lockInDays, startDate, maturityDate)
	if tenureDays < 365 {
		tenureDays = 365
	}
	yearsCompleted := tenureDays / 365

	amount := principal
	interest := 0.0
	for y := 0; y < yearsCompleted; y++ {
		yearInterest := amount * rate / 100
		amount += yearInterest
		interest += yearInterest
	}
	if remaining := tenureDays - yearsCompleted*365; remaining > 0 {
		remainingInterest := amount * rate * float64(remaining) / (100 * 365)
		amount += remainingInterest
		interest += remainingInterest
	}

	return Payout{
		Principal:      principal,
		InterestEarned: interest,
		Transfer:       amount,
	}.rounded()
}

// FixedTermPremature breaks a fixed deposit before maturity. Interest to
// date mirrors the maturity path but stops at the closure date; the penalty
// base is the interest the original principal would have earned over the
// remaining normalized tenure.
func FixedTermPremature(principal, rate, penaltyRate float64, lockInDays int, startDate, maturityDate, closureDate time.Time) (Payout, error) {
	startDate = daycount.Truncate(startDate)
	closureDate = daycount.Truncate(closureDate)
	if closureDate.Before(startDate) {
		return Payout{}, fmt.Errorf("closure: closure date %s precedes start date %s: %w",
			closureDate.Format(time.DateOnly), startDate.Format(time.DateOnly), shared.ErrClosureBeforeStart)
	}

	yearsCompleted := completedAnniversaryYears(startDate, closureDate)

	amountAfterYears := principal
	for y := 0; y < yearsCompleted; y++ {
		amountAfterYears += amountAfterYears * rate / 100
	}

	var interestToDate float64
	if yearsCompleted == 0 {
		daysElapsed := daycount.DaysBetween(startDate, closureDate)
		if daysElapsed > 0 {
			// Both endpoints earn: one day after start counts two days.
			interestToDate = principal * rate * float64(daysElapsed+1) / (100 * float64(daycount.DaysInYear(startDate.Year())))
		}
	} else {
		lastAnniversary := anniversary(startDate, yearsCompleted)
		daysElapsed := daycount.DaysBetween(lastAnniversary, closureDate)
		interestToDate = amountAfterYears - principal
		if daysElapsed > 0 {
			interestToDate += amountAfterYears * rate * float64(daysElapsed+1) / (100 * float64(daycount.DaysInYear(closureDate.Year())))
		}
	}

	tenureDays := normalizedTenureDays(lockInDays, startDate, maturityDate)
	var elapsedNormalized int
	if yearsCompleted == 0 {
		elapsedNormalized = daycount.DaysBetween(startDate, closureDate)
		if elapsedNormalized > 365 {
			elapsedNormalized = 365
		}
	} else {
		inYear := daycount.DaysBetween(anniversary(startDate, yearsCompleted), closureDate)
		if inYear > 365 {
			inYear = 365
		}
		elapsedNormalized = yearsCompleted*365 + inYear
	}
	remainingDays := tenureDays - elapsedNormalized
	if remainingDays < 0 {
		remainingDays = 0
	}
	if remainingDays > tenureDays {
		remainingDays = tenureDays
	}

	var futureInterest float64
	if remainingDays > 0 {
		futureInterest = principal * rate * float64(remainingDays) / (100 * 365)
	}
	penalty := futureInterest * penaltyRate / 100

	return Payout{
		Principal:          principal,
		InterestEarned:     interestToDate,
		FutureInterestLost: futureInterest,
		Penalty:            penalty,
		Transfer:           principal + interestToDate - penalty,
	}.rounded(), nil
}

// DailyDepositMaturity reports a daily-deposit payout. The balance already
// carries every accrued day of interest; principal is reconstructed from
// the contribution rate.
func DailyDepositMaturity(balance, dailyContribution float64, startDate, maturityDate time.Time) Payout {
	principal := dailyContribution * float64(daycount.DaysBetween(startDate, maturityDate))
	return Payout{
		Principal:      principal,
		InterestEarned: balance - principal,
		Transfer:       balance,
	}.rounded()
}

// DailyDepositPremature simulates the forfeited tail of a daily-deposit
// account day by day: each remaining day adds the contribution, then
// compounds one day of interest. The penalty is charged against that
// simulated future interest, never against the balance accrued to date.
func DailyDepositPremature(balance, dailyContribution, rate, penaltyRate float64, startDate, maturityDate, closureDate time.Time) Payout {
	totalDays := daycount.DaysBetween(startDate, maturityDate)
	daysCompleted := daycount.DaysBetween(startDate, closureDate)
	remainingDays := totalDays - daysCompleted
	if remainingDays < 0 {
		remainingDays = 0
	}

	futureInterest := simulateDailyFuture(balance, dailyContribution, remainingDays, rate, closureDate)
	penalty := futureInterest * penaltyRate / 100

	return Payout{
		Principal:          dailyContribution * float64(daysCompleted),
		InterestEarned:     balance - dailyContribution*float64(daysCompleted),
		FutureInterestLost: futureInterest,
		Penalty:            penalty,
		Transfer:           balance - penalty,
	}.rounded()
}

func simulateDailyFuture(balance, dailyContribution float64, remainingDays int, rate float64, asOf time.Time) float64 {
	if remainingDays <= 0 || dailyContribution <= 0 {
		return 0
	}
	dailyRate := rate / 100 / float64(daycount.DaysInYear(asOf.Year()))
	future := 0.0
	for day := 0; day < remainingDays; day++ {
		balance += dailyContribution
		interest := balance * dailyRate
		future += interest
		balance += interest
	}
	return future
}

// RecurringMaturity replays every contribution in deposit order with true
// monthly compounding: deposit first, then one month of interest on the
// running balance.
func RecurringMaturity(contributions []accrual.Contribution, rate float64) Payout {
	if len(contributions) == 0 {
		return Payout{}
	}
	monthlyRate := rate / 100 / 12

	principal := 0.0
	balance := 0.0
	interest := 0.0
	for _, c := range contributions {
		principal += c.Amount
		balance += c.Amount
		monthInterest := balance * monthlyRate
		balance += monthInterest
		interest += monthInterest
	}

	return Payout{
		Principal:      principal,
		InterestEarned: interest,
		Transfer:       balance,
	}.rounded()
}

// RecurringPremature splits the in-progress contribution cycle into days
// stayed and days remaining, prorates that cycle's interest over the
// nominal cycle length, then simulates full monthly compounding for the
// remaining complete cycles. Closure exactly on a contribution day leaves
// no partial cycle to forfeit.
func RecurringPremature(contributions []accrual.Contribution, rate, penaltyRate float64, startDate, maturityDate, closureDate time.Time) Payout {
	startDate = daycount.Truncate(startDate)
	closureDate = daycount.Truncate(closureDate)

	var installment float64
	if len(contributions) > 0 {
		installment = contributions[0].Amount
	}

	totalMonths := daycount.WholeMonthsBetween(startDate, maturityDate)
	monthsSinceStart := daycount.WholeMonthsBetween(startDate, closureDate)
	nextContribution := daycount.AddMonthsClamped(startDate, monthsSinceStart, startDate.Day())

	remainingDaysInCycle := daycount.DaysBetween(closureDate, nextContribution)
	completedMonths := monthsSinceStart - 1
	remainingMonths := totalMonths - completedMonths - 1
	if remainingMonths < 0 {
		remainingMonths = 0
	}

	monthlyRate := rate / 100 / 12

	// Replay the completed cycles, then add the current cycle's deposit.
	balance := 0.0
	for m := 0; m < completedMonths; m++ {
		balance += installment
		balance += balance * monthlyRate
	}
	balance += installment

	var partialForfeit float64
	if remainingDaysInCycle > 0 {
		partialForfeit = balance * monthlyRate * float64(remainingDaysInCycle) / rdCycleDays
	}
	currentCycleInterest := balance * monthlyRate
	balance += currentCycleInterest - partialForfeit

	futureComplete := simulateRecurringFuture(balance, installment, remainingMonths, monthlyRate)
	future := futureComplete + partialForfeit
	penalty := future * penaltyRate / 100

	principal := 0.0
	for _, c := range contributions {
		principal += c.Amount
	}

	return Payout{
		Principal:          principal,
		InterestEarned:     balance - (currentCycleInterest - partialForfeit) - principal,
		FutureInterestLost: future,
		Penalty:            penalty,
		Transfer:           balance - penalty - (currentCycleInterest - partialForfeit),
	}.rounded()
}

func simulateRecurringFuture(balance, installment float64, remainingMonths int, monthlyRate float64) float64 {
	if remainingMonths <= 0 || installment <= 0 {
		return 0
	}
	future := 0.0
	for m := 0; m < remainingMonths; m++ {
		balance += installment
		interest := balance * monthlyRate
		balance += interest
		future += interest
	}
	return future
}
