package account

import (
	"time"
)

// Family enumerates the supported account families.
type Family string

const (
	FamilySavings Family = "SAVINGS"
	FamilyRD      Family = "RD"
	FamilyFD      Family = "FD"
	FamilyDDS     Family = "DDS"
	FamilyLoan    Family = "LOAN"
)

// Valid reports whether the family is one of the closed set.
func (f Family) Valid() bool {
	switch f {
	case FamilySavings, FamilyRD, FamilyFD, FamilyDDS, FamilyLoan:
		return true
	}
	return false
}

// Term reports whether the family has a contractual maturity date.
func (f Family) Term() bool {
	return f == FamilyRD || f == FamilyFD || f == FamilyDDS
}

// Status enumerates account statuses. Closure is terminal.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Interest calculation methods.
const (
	MethodSimple   = "simple"
	MethodCompound = "compound"
)

// Repayment frequencies for loan accounts.
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyWeekly    = "weekly"
	FrequencyDaily     = "daily"
)

// AccountType holds the current type-level defaults. Accounts snapshot these
// at creation so later type edits never retroactively change running
// accounts.
type AccountType struct {
	ID                         int64
	Name                       string
	Family                     Family
	InterestRate               float64
	InterestCalculationMethod  string
	InterestCalculationFreq    string
	EarlyWithdrawalPenaltyRate float64
	LockInPeriodDays           int
	TermInDays                 int
	ContributionFrequency      string
	MinContributionAmount      float64
	RepaymentFrequency         string
	LoanPenaltyRate            float64
	MinDeposit                 float64
	MaxDeposit                 float64
	MinWithdrawal              float64
	MaxWithdrawal              float64
	MinimumBalance             float64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// Snapshot captures the type parameters in force when the account was
// opened. Nil fields fall through to the type default at resolution time.
type Snapshot struct {
	InterestRate               *float64
	CalculationMethod          *string
	CalculationFrequency       *string
	EarlyWithdrawalPenaltyRate *float64
	LockInPeriodDays           *int
	ContributionFrequency      *string
	MinContributionAmount      *float64
	MinDeposit                 *float64
	MaxDeposit                 *float64
	MinWithdrawal              *float64
	MaxWithdrawal              *float64
	MinimumBalance             *float64

	// Loan parameters, set on activation.
	LoanPrincipal      *float64
	EMIAmount          *float64
	LoanTermMonths     *int
	RepaymentFrequency *string
	LoanPenaltyRate    *float64
}

// Account is the mutable aggregate root. Balance sign follows family
// semantics: loans stay negative while outstanding.
type Account struct {
	ID            int64
	CustomerID    int64
	AccountTypeID int64
	Type          AccountType
	Balance       float64
	StartDate     time.Time
	MaturityDate  *time.Time
	Status        Status

	// LastInterestAt is the accrual watermark: the calendar date through
	// which interest has been posted. Monotonically non-decreasing.
	LastInterestAt *time.Time

	DailyContribution float64
	ContributionDay   int
	EMIDueDay         *int
	LastPaymentDate   *time.Time

	Snapshot            Snapshot
	CustomInterestRate  *float64
	UseCustomParameters bool

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Family returns the account family from its type.
func (a *Account) Family() Family {
	return a.Type.Family
}

// Active reports whether the account accepts operations.
func (a *Account) Active() bool {
	return a.Status == StatusActive
}

// Matured reports whether the maturity date has been reached as of the given
// day.
func (a *Account) Matured(asOf time.Time) bool {
	return a.MaturityDate != nil && !a.MaturityDate.After(asOf)
}

// EffectiveValue resolves a parameter with priority custom > snapshot > type
// default. Every formula in the engine consumes one resolved value rather
// than scattering the fallback chain.
func EffectiveValue[T any](custom, snapshot *T, typeDefault T) T {
	if custom != nil {
		return *custom
	}
	if snapshot != nil {
		return *snapshot
	}
	return typeDefault
}

// EffectiveInterestRate resolves the annual rate in percent.
func (a *Account) EffectiveInterestRate() float64 {
	var custom *float64
	if a.UseCustomParameters {
		custom = a.CustomInterestRate
	}
	return EffectiveValue(custom, a.Snapshot.InterestRate, a.Type.InterestRate)
}

// EffectiveCalculationMethod resolves to "simple" or "compound".
func (a *Account) EffectiveCalculationMethod() string {
	m := EffectiveValue(nil, a.Snapshot.CalculationMethod, a.Type.InterestCalculationMethod)
	if m == "" {
		return MethodSimple
	}
	return m
}

// EffectivePenaltyRate resolves the early-withdrawal penalty rate in percent.
// Unset or non-positive rates fall back to the 0.5% floor.
func (a *Account) EffectivePenaltyRate() float64 {
	r := EffectiveValue(nil, a.Snapshot.EarlyWithdrawalPenaltyRate, a.Type.EarlyWithdrawalPenaltyRate)
	if r <= 0 {
		return 0.5
	}
	return r
}

// EffectiveLockInDays resolves the contractual tenure in days.
func (a *Account) EffectiveLockInDays() int {
	return EffectiveValue(nil, a.Snapshot.LockInPeriodDays, a.Type.LockInPeriodDays)
}

// LoanPrincipal returns the activated principal, falling back to the
// outstanding balance magnitude.
func (a *Account) LoanPrincipal() float64 {
	if a.Snapshot.LoanPrincipal != nil {
		return *a.Snapshot.LoanPrincipal
	}
	if a.Balance < 0 {
		return -a.Balance
	}
	return 0
}

// LoanRepaymentFrequency resolves the repayment cadence, defaulting to
// monthly.
func (a *Account) LoanRepaymentFrequency() string {
	f := EffectiveValue(nil, a.Snapshot.RepaymentFrequency, a.Type.RepaymentFrequency)
	if f == "" {
		return FrequencyMonthly
	}
	return f
}

// DueDay returns the EMI due day, defaulting to the start date's day of
// month.
func (a *Account) DueDay() int {
	if a.EMIDueDay != nil {
		return *a.EMIDueDay
	}
	return a.StartDate.Day()
}

// SnapshotFrom captures the deposit-side parameters of a type. Loan fields
// are filled later, on activation.
func SnapshotFrom(t AccountType) Snapshot {
	return Snapshot{
		InterestRate:               ptr(t.InterestRate),
		CalculationMethod:          ptr(t.InterestCalculationMethod),
		CalculationFrequency:       ptr(t.InterestCalculationFreq),
		EarlyWithdrawalPenaltyRate: ptr(t.EarlyWithdrawalPenaltyRate),
		LockInPeriodDays:           ptr(t.LockInPeriodDays),
		ContributionFrequency:      ptr(t.ContributionFrequency),
		MinContributionAmount:      ptr(t.MinContributionAmount),
		MinDeposit:                 ptr(t.MinDeposit),
		MaxDeposit:                 ptr(t.MaxDeposit),
		MinWithdrawal:              ptr(t.MinWithdrawal),
		MaxWithdrawal:              ptr(t.MaxWithdrawal),
		MinimumBalance:             ptr(t.MinimumBalance),
	}
}

func ptr[T any](v T) *T { return &v }
