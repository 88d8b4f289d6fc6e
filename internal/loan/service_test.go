package loan

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/shared"
)

type memoryAccountPort struct {
	accounts map[int64]*account.Account
}

func (p *memoryAccountPort) GetAccount(_ context.Context, id int64) (*account.Account, error) {
	a, ok := p.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (p *memoryAccountPort) SaveLoanActivation(_ context.Context, id int64, principal, emiAmount float64, termMonths int, frequency string, penaltyRate float64, startDate time.Time) error {
	a, ok := p.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.Balance = -principal
	a.Snapshot.LoanPrincipal = &principal
	a.Snapshot.EMIAmount = &emiAmount
	a.Snapshot.LoanTermMonths = &termMonths
	a.Snapshot.RepaymentFrequency = &frequency
	a.Snapshot.LoanPenaltyRate = &penaltyRate
	a.StartDate = startDate
	return nil
}

type memoryLoanRepo struct {
	installments map[int64][]*Installment
	nextID       int64
	failMarkPaid bool
}

func newMemoryLoanRepo() *memoryLoanRepo {
	return &memoryLoanRepo{installments: make(map[int64][]*Installment)}
}

func (r *memoryLoanRepo) CountInstallments(_ context.Context, accountID int64) (int, error) {
	return len(r.installments[accountID]), nil
}

func (r *memoryLoanRepo) InsertSchedule(_ context.Context, accountID int64, installments []Installment) error {
	for i := range installments {
		r.nextID++
		inst := installments[i]
		inst.ID = r.nextID
		inst.AccountID = accountID
		r.installments[accountID] = append(r.installments[accountID], &inst)
	}
	return nil
}

func (r *memoryLoanRepo) ListSchedule(_ context.Context, accountID int64) ([]Installment, error) {
	var out []Installment
	for _, inst := range r.installments[accountID] {
		out = append(out, *inst)
	}
	return out, nil
}

func (r *memoryLoanRepo) ListUnpaid(_ context.Context, accountID int64) ([]Installment, error) {
	var out []Installment
	for _, inst := range r.installments[accountID] {
		if !inst.Paid {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (r *memoryLoanRepo) MarkPaid(_ context.Context, installmentID int64, amount float64, paidDate time.Time, ledgerEntryID *int64) error {
	if r.failMarkPaid {
		return assert.AnError
	}
	for _, insts := range r.installments {
		for _, inst := range insts {
			if inst.ID == installmentID {
				inst.Paid = true
				inst.PaidAmount = &amount
				inst.PaidDate = &paidDate
				if ledgerEntryID != nil {
					inst.LedgerEntryID = ledgerEntryID
				}
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (r *memoryLoanRepo) RefreshOverdue(_ context.Context, accountID int64, asOf time.Time) error {
	for _, inst := range r.installments[accountID] {
		if !inst.Paid {
			inst.Overdue = inst.DueDate.Before(asOf)
		}
	}
	return nil
}

func newLoanFixture(t *testing.T) (*Service, *memoryAccountPort, *memoryLoanRepo) {
	t.Helper()
	rate := 12.0
	accounts := &memoryAccountPort{accounts: map[int64]*account.Account{
		1: {
			ID:        1,
			Balance:   0,
			StartDate: date(2025, time.January, 15),
			Status:    account.StatusActive,
			Type: account.AccountType{
				Family:             account.FamilyLoan,
				InterestRate:       rate,
				RepaymentFrequency: account.FrequencyMonthly,
			},
		},
	}}
	repo := newMemoryLoanRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(accounts, repo, logger)
	svc.now = func() time.Time { return date(2025, time.January, 15) }
	return svc, accounts, repo
}

func TestActivateGeneratesSchedule(t *testing.T) {
	svc, accounts, repo := newLoanFixture(t)
	ctx := context.Background()

	a, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)
	assert.Equal(t, -120000.0, a.Balance)
	require.NotNil(t, a.Snapshot.EMIAmount)
	assert.InDelta(t, 10661.85, *a.Snapshot.EMIAmount, 0.01)

	count, err := repo.CountInstallments(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	assert.Equal(t, -120000.0, accounts.accounts[1].Balance)

	// Activating again must refuse: balance is already outstanding.
	_, err = svc.Activate(ctx, 1, 120000, 12)
	assert.Error(t, err)
}

func TestGenerateScheduleIdempotent(t *testing.T) {
	svc, _, repo := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)

	result, err := svc.GenerateSchedule(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyExists, result)

	count, _ := repo.CountInstallments(ctx, 1)
	assert.Equal(t, 12, count)
}

func TestGenerateScheduleWrongFamily(t *testing.T) {
	svc, accounts, _ := newLoanFixture(t)
	accounts.accounts[2] = &account.Account{
		ID: 2, Status: account.StatusActive,
		Type: account.AccountType{Family: account.FamilyFD},
	}
	_, err := svc.GenerateSchedule(context.Background(), 2)
	assert.ErrorIs(t, err, shared.ErrWrongAccountFamily)
}

func TestApplyPaymentFullRun(t *testing.T) {
	svc, _, repo := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)

	schedule, err := svc.Schedule(ctx, 1)
	require.NoError(t, err)

	// Paying every EMI in order leaves nothing unpaid.
	for i, inst := range schedule {
		marked, err := svc.ApplyPayment(ctx, 1, inst.EMIAmount, inst.DueDate, int64(100+i))
		require.NoError(t, err)
		assert.Equal(t, 1, marked, "installment %d", inst.Sequence)
	}

	unpaid, err := repo.ListUnpaid(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, unpaid)
}

func TestApplyPaymentInsufficientIsNoOp(t *testing.T) {
	svc, _, repo := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)

	// Well below 95% of the EMI: nothing settles, no error.
	marked, err := svc.ApplyPayment(ctx, 1, 5000, date(2025, time.February, 15), 7)
	require.NoError(t, err)
	assert.Zero(t, marked)

	unpaid, _ := repo.ListUnpaid(ctx, 1)
	assert.Len(t, unpaid, 12)
}

func TestApplyPaymentWithinToleranceSettlesFullEMI(t *testing.T) {
	svc, _, repo := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)

	schedule, _ := svc.Schedule(ctx, 1)
	emi := schedule[0].EMIAmount

	// 96% of the EMI is inside the 5% tolerance, so the installment settles
	// and records the full EMI as paid.
	partial := emi * 0.96
	marked, err := svc.ApplyPayment(ctx, 1, partial, date(2025, time.February, 15), 8)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	all, _ := repo.ListSchedule(ctx, 1)
	first := all[0]
	require.True(t, first.Paid)
	require.NotNil(t, first.PaidAmount)
	assert.InDelta(t, emi, *first.PaidAmount, 0.001)
}

func TestApplyPaymentCoversMultipleAndLinksFirstOnly(t *testing.T) {
	svc, _, repo := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)

	schedule, _ := svc.Schedule(ctx, 1)
	amount := schedule[0].EMIAmount + schedule[1].EMIAmount

	marked, err := svc.ApplyPayment(ctx, 1, amount, date(2025, time.March, 1), 55)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	all, _ := repo.ListSchedule(ctx, 1)
	require.NotNil(t, all[0].LedgerEntryID)
	assert.Equal(t, int64(55), *all[0].LedgerEntryID)
	assert.Nil(t, all[1].LedgerEntryID)
}

func TestApplyPaymentRefreshesOverdue(t *testing.T) {
	svc, _, repo := newLoanFixture(t)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, 120000, 12)
	require.NoError(t, err)

	// Clock far past the first few due dates.
	svc.now = func() time.Time { return date(2025, time.May, 1) }

	schedule, _ := svc.Schedule(ctx, 1)
	_, err = svc.ApplyPayment(ctx, 1, schedule[0].EMIAmount, date(2025, time.May, 1), 9)
	require.NoError(t, err)

	all, _ := repo.ListSchedule(ctx, 1)
	assert.False(t, all[0].Overdue) // paid
	assert.True(t, all[1].Overdue)  // due 2025-03-15, unpaid
	assert.True(t, all[2].Overdue)  // due 2025-04-15, unpaid
	assert.False(t, all[4].Overdue) // due 2025-06-15, not yet due
}
