package loan

import (
	"fmt"
	"math"
	"time"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/daycount"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// ComputeEMI returns the fixed installment for a loan:
// EMI = P*i*(1+i)^n / ((1+i)^n - 1) with i the monthly rate. A zero rate
// degrades to straight-line principal. Rounded to 2 decimals.
func ComputeEMI(principal, annualRate float64, termMonths int) (float64, error) {
	if principal <= 0 {
		return 0, fmt.Errorf("loan: principal must be positive: %w", shared.ErrInvalidAmount)
	}
	if termMonths <= 0 {
		return 0, fmt.Errorf("loan: term must be positive: %w", shared.ErrInvalidAmount)
	}
	if annualRate < 0 {
		return 0, fmt.Errorf("loan: rate must not be negative: %w", shared.ErrInvalidAmount)
	}
	monthlyRate := annualRate / 100 / 12
	if monthlyRate == 0 {
		return money.Round2(principal / float64(termMonths)), nil
	}
	factor := math.Pow(1+monthlyRate, float64(termMonths))
	emi := principal * monthlyRate * factor / (factor - 1)
	return money.Round2(emi), nil
}

// ScheduleParams are the inputs to schedule construction.
type ScheduleParams struct {
	Principal  float64
	AnnualRate float64
	EMIAmount  float64
	TermMonths int
	StartDate  time.Time
	DueDay     int
	Frequency  string
}

// BuildSchedule computes the full installment list. The last installment's
// principal component is overridden to the exact remaining principal so the
// cumulative principal reaches zero regardless of rounding in the EMI. The
// schedule ends early if the principal is exhausted before the nominal term.
// Components are kept unrounded; rounding happens at presentation and when
// money moves.
func BuildSchedule(p ScheduleParams) ([]Installment, error) {
	if p.Principal <= 0 || p.TermMonths <= 0 || p.EMIAmount <= 0 {
		return nil, fmt.Errorf("loan: invalid schedule parameters: %w", shared.ErrInvalidAmount)
	}
	monthlyRate := p.AnnualRate / 100 / 12
	dueDay := p.DueDay
	if dueDay <= 0 {
		dueDay = p.StartDate.Day()
	}

	remaining := p.Principal
	cursor := daycount.Truncate(p.StartDate)
	installments := make([]Installment, 0, p.TermMonths)

	for seq := 1; seq <= p.TermMonths; seq++ {
		interest := remaining * monthlyRate
		principalPart := p.EMIAmount - interest
		emi := p.EMIAmount
		if seq == p.TermMonths {
			principalPart = remaining
			emi = principalPart + interest
		}

		cursor = nextDueDate(cursor, p.Frequency, dueDay)
		after := remaining - principalPart

		installments = append(installments, Installment{
			Sequence:           seq,
			DueDate:            cursor,
			EMIAmount:          emi,
			PrincipalComponent: principalPart,
			InterestComponent:  interest,
			RemainingBefore:    remaining,
			RemainingAfter:     math.Max(0, after),
		})

		remaining = after
		if remaining <= 0 {
			break
		}
	}
	return installments, nil
}

// nextDueDate advances one repayment period. Month-based cadences clamp the
// due day to the target month's length.
func nextDueDate(base time.Time, frequency string, dueDay int) time.Time {
	switch frequency {
	case account.FrequencyQuarterly:
		return daycount.AddMonthsClamped(base, 3, dueDay)
	case account.FrequencyWeekly:
		return base.AddDate(0, 0, 7)
	case account.FrequencyDaily:
		return base.AddDate(0, 0, 1)
	default:
		return daycount.AddMonthsClamped(base, 1, dueDay)
	}
}
