package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryType classifies a money movement.
type EntryType string

const (
	TypeDeposit       EntryType = "deposit"
	TypeWithdrawal    EntryType = "withdrawal"
	TypeInterest      EntryType = "interest"
	TypePenalty       EntryType = "penalty"
	TypeLoanDisbursal EntryType = "loan_disbursal"
	TypeLoanRepayment EntryType = "loan_repayment"
)

// Valid reports whether the type is one of the known movements.
func (t EntryType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeInterest, TypePenalty, TypeLoanDisbursal, TypeLoanRepayment:
		return true
	}
	return false
}

// Credits reports whether the movement increases the account balance. A
// loan repayment credits because an outstanding loan balance is negative.
func (t EntryType) Credits() bool {
	switch t {
	case TypeDeposit, TypeInterest, TypeLoanRepayment:
		return true
	}
	return false
}

// Entry is one append-only ledger row. Entries are the source of truth for
// balance changes and are never mutated after posting.
type Entry struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"accountId"`
	Type          EntryType `json:"type"`
	Amount        float64   `json:"amount"`
	BalanceBefore float64   `json:"balanceBefore"`
	BalanceAfter  float64   `json:"balanceAfter"`
	Description   string    `json:"description"`
	Reference     string    `json:"reference"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewReference generates a ledger reference like TXN20250901A1B2C3D4.
func NewReference(now time.Time) string {
	return "TXN" + now.Format("20060102") + strings.ToUpper(uuid.NewString()[:8])
}
