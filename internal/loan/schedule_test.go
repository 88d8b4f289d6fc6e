package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/account"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeEMI(t *testing.T) {
	emi, err := ComputeEMI(120000, 12, 12)
	require.NoError(t, err)
	assert.InDelta(t, 10661.85, emi, 0.01)

	// Zero rate degrades to straight-line principal.
	emi, err = ComputeEMI(12000, 0, 12)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, emi)

	_, err = ComputeEMI(0, 12, 12)
	assert.Error(t, err)
	_, err = ComputeEMI(1000, 12, 0)
	assert.Error(t, err)
	_, err = ComputeEMI(1000, -1, 12)
	assert.Error(t, err)
}

func TestBuildSchedulePrincipalSumsExactly(t *testing.T) {
	emi, err := ComputeEMI(120000, 12, 12)
	require.NoError(t, err)

	installments, err := BuildSchedule(ScheduleParams{
		Principal:  120000,
		AnnualRate: 12,
		EMIAmount:  emi,
		TermMonths: 12,
		StartDate:  date(2025, time.January, 15),
		Frequency:  account.FrequencyMonthly,
	})
	require.NoError(t, err)
	require.Len(t, installments, 12)

	var principalSum float64
	for _, inst := range installments {
		principalSum += inst.PrincipalComponent
	}
	assert.InDelta(t, 120000, principalSum, 0.01)

	last := installments[len(installments)-1]
	assert.InDelta(t, 0, last.RemainingAfter, 0.005)

	// The last EMI absorbs the rounding residue.
	assert.InDelta(t, last.PrincipalComponent+last.InterestComponent, last.EMIAmount, 1e-9)

	// Remaining principal chains across rows.
	for i := 1; i < len(installments); i++ {
		assert.InDelta(t, installments[i-1].RemainingAfter, installments[i].RemainingBefore, 1e-9)
	}
}

func TestBuildScheduleDueDatesClampMonthEnd(t *testing.T) {
	installments, err := BuildSchedule(ScheduleParams{
		Principal:  12000,
		AnnualRate: 0,
		EMIAmount:  1000,
		TermMonths: 4,
		StartDate:  date(2025, time.January, 31),
		DueDay:     31,
		Frequency:  account.FrequencyMonthly,
	})
	require.NoError(t, err)
	require.Len(t, installments, 4)

	assert.Equal(t, date(2025, time.February, 28), installments[0].DueDate)
	assert.Equal(t, date(2025, time.March, 31), installments[1].DueDate)
	assert.Equal(t, date(2025, time.April, 30), installments[2].DueDate)
	assert.Equal(t, date(2025, time.May, 31), installments[3].DueDate)
}

func TestBuildScheduleFrequencies(t *testing.T) {
	start := date(2025, time.June, 10)

	weekly, err := BuildSchedule(ScheduleParams{
		Principal: 400, AnnualRate: 0, EMIAmount: 100, TermMonths: 4,
		StartDate: start, Frequency: account.FrequencyWeekly,
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.June, 17), weekly[0].DueDate)
	assert.Equal(t, date(2025, time.June, 24), weekly[1].DueDate)

	quarterly, err := BuildSchedule(ScheduleParams{
		Principal: 400, AnnualRate: 0, EMIAmount: 100, TermMonths: 4,
		StartDate: start, Frequency: account.FrequencyQuarterly,
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.September, 10), quarterly[0].DueDate)
	assert.Equal(t, date(2025, time.December, 10), quarterly[1].DueDate)
	assert.Equal(t, date(2026, time.March, 10), quarterly[2].DueDate)

	daily, err := BuildSchedule(ScheduleParams{
		Principal: 200, AnnualRate: 0, EMIAmount: 100, TermMonths: 2,
		StartDate: start, Frequency: account.FrequencyDaily,
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.June, 11), daily[0].DueDate)
	assert.Equal(t, date(2025, time.June, 12), daily[1].DueDate)
}

func TestBuildScheduleStopsWhenPrincipalExhausted(t *testing.T) {
	// EMI deliberately oversized: principal runs out before the term.
	installments, err := BuildSchedule(ScheduleParams{
		Principal:  1000,
		AnnualRate: 0,
		EMIAmount:  400,
		TermMonths: 12,
		StartDate:  date(2025, time.March, 1),
		Frequency:  account.FrequencyMonthly,
	})
	require.NoError(t, err)
	require.Len(t, installments, 3)
	assert.InDelta(t, 0, installments[2].RemainingAfter, 0.005)
}
