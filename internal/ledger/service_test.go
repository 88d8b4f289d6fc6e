package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/shared"
)

type fakeLedgerRepo struct {
	balances map[int64]float64
	closed   map[int64]bool
	entries  []*Entry
	nextID   int64
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{balances: make(map[int64]float64), closed: make(map[int64]bool)}
}

func (r *fakeLedgerRepo) PostEntry(_ context.Context, accountID int64, entryType EntryType, amount float64, description, reference string) (*Entry, error) {
	if r.closed[accountID] {
		return nil, shared.ErrAccountClosed
	}
	before := r.balances[accountID]
	after := before - amount
	if entryType.Credits() {
		after = before + amount
	}
	after = money.Round2(after)
	r.balances[accountID] = after
	r.nextID++
	e := &Entry{
		ID:            r.nextID,
		AccountID:     accountID,
		Type:          entryType,
		Amount:        money.Round2(amount),
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		Reference:     reference,
		CreatedAt:     time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *fakeLedgerRepo) GetEntry(_ context.Context, id int64) (*Entry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLedgerRepo) ListByAccount(_ context.Context, accountID int64) ([]Entry, error) {
	var out []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].AccountID == accountID {
			out = append(out, *r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) CloseSettledLoan(_ context.Context, accountID int64) (bool, error) {
	if r.balances[accountID] < 0 {
		return false, nil
	}
	r.closed[accountID] = true
	r.balances[accountID] = 0
	return true, nil
}

type fakeMarker struct {
	markedPerCall []int
	outstanding   int
	applyErr      error
	lastEntryID   int64
	lastAmount    float64
}

func (m *fakeMarker) ApplyPayment(_ context.Context, _ int64, amount float64, _ time.Time, ledgerEntryID int64) (int, error) {
	if m.applyErr != nil {
		return 0, m.applyErr
	}
	m.lastEntryID = ledgerEntryID
	m.lastAmount = amount
	if len(m.markedPerCall) == 0 {
		return 0, nil
	}
	marked := m.markedPerCall[0]
	m.markedPerCall = m.markedPerCall[1:]
	m.outstanding -= marked
	return marked, nil
}

func (m *fakeMarker) OutstandingCount(_ context.Context, _ int64) (int, error) {
	return m.outstanding, nil
}

func newLedgerFixture(t *testing.T) (*Service, *fakeLedgerRepo, *fakeMarker) {
	t.Helper()
	repo := newFakeLedgerRepo()
	marker := &fakeMarker{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, marker, nil, logger)
	svc.now = func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo, marker
}

func TestPostDeposit(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	repo.balances[1] = 500

	result, err := svc.Post(context.Background(), PostInput{AccountID: 1, Type: TypeDeposit, Amount: 120000})
	require.NoError(t, err)

	e := result.Entry
	assert.Equal(t, 500.0, e.BalanceBefore)
	assert.Equal(t, 120500.0, e.BalanceAfter)
	assert.Equal(t, "Deposit of 120,000.00", e.Description)
	assert.Regexp(t, `^TXN20250601[0-9A-F]{8}$`, e.Reference)
}

func TestPostWithdrawalDebits(t *testing.T) {
	svc, repo, _ := newLedgerFixture(t)
	repo.balances[1] = 500

	result, err := svc.Post(context.Background(), PostInput{AccountID: 1, Type: TypeWithdrawal, Amount: 200})
	require.NoError(t, err)
	assert.Equal(t, 300.0, result.Entry.BalanceAfter)
}

func TestPostRejectsBadInput(t *testing.T) {
	svc, _, _ := newLedgerFixture(t)

	_, err := svc.Post(context.Background(), PostInput{AccountID: 1, Type: "transfer", Amount: 10})
	assert.Error(t, err)

	_, err = svc.Post(context.Background(), PostInput{AccountID: 1, Type: TypeDeposit, Amount: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestPostRepaymentSettlesInstallments(t *testing.T) {
	svc, repo, marker := newLedgerFixture(t)
	repo.balances[7] = -20000
	marker.outstanding = 12
	marker.markedPerCall = []int{2}

	result, err := svc.Post(context.Background(), PostInput{AccountID: 7, Type: TypeLoanRepayment, Amount: 10000})
	require.NoError(t, err)

	assert.Equal(t, 2, result.InstallmentsSettled)
	assert.False(t, result.LoanClosed)
	assert.Equal(t, result.Entry.ID, marker.lastEntryID)
	assert.Equal(t, 10000.0, marker.lastAmount)
	assert.Equal(t, -10000.0, repo.balances[7])
}

func TestPostFinalRepaymentClosesLoan(t *testing.T) {
	svc, repo, marker := newLedgerFixture(t)
	repo.balances[7] = -10000
	marker.outstanding = 1
	marker.markedPerCall = []int{1}

	result, err := svc.Post(context.Background(), PostInput{AccountID: 7, Type: TypeLoanRepayment, Amount: 10000})
	require.NoError(t, err)

	assert.True(t, result.LoanClosed)
	assert.True(t, repo.closed[7])
	assert.Equal(t, 0.0, repo.balances[7])
}

func TestPostRepaymentSurvivesMarkerFailure(t *testing.T) {
	svc, repo, marker := newLedgerFixture(t)
	repo.balances[7] = -20000
	marker.applyErr = assert.AnError

	result, err := svc.Post(context.Background(), PostInput{AccountID: 7, Type: TypeLoanRepayment, Amount: 10000})
	require.NoError(t, err)

	// The entry stands even when the schedule update fails.
	assert.NotNil(t, result.Entry)
	assert.Zero(t, result.InstallmentsSettled)
	assert.Equal(t, -10000.0, repo.balances[7])
}

func TestNewReferenceShape(t *testing.T) {
	ref := NewReference(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^TXN20250102[0-9A-Fa-f]{8}$`, ref)
	assert.NotEqual(t, ref, NewReference(time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC)))
}
