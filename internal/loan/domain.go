package loan

import "time"

// Installment is one row of a loan's amortization schedule. The set is
// generated once when the loan is activated and only payment application
// mutates it afterwards.
type Installment struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"accountId"`
	Sequence  int       `json:"sequence"`
	DueDate   time.Time `json:"dueDate"`

	EMIAmount          float64 `json:"emiAmount"`
	PrincipalComponent float64 `json:"principalComponent"`
	InterestComponent  float64 `json:"interestComponent"`
	RemainingBefore    float64 `json:"remainingBefore"`
	RemainingAfter     float64 `json:"remainingAfter"`

	Paid          bool       `json:"paid"`
	PaidAmount    *float64   `json:"paidAmount,omitempty"`
	PaidDate      *time.Time `json:"paidDate,omitempty"`
	LedgerEntryID *int64     `json:"ledgerEntryId,omitempty"`

	// Overdue is derived (unpaid and past due); the stored column is a
	// cache refreshed on payment application and on read.
	Overdue bool `json:"overdue"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ComputeOverdue evaluates the derived overdue flag as of a date.
func (i *Installment) ComputeOverdue(asOf time.Time) bool {
	return !i.Paid && i.DueDate.Before(asOf)
}

// GenerateResult reports the outcome of schedule generation.
type GenerateResult string

const (
	// ResultGenerated means a fresh schedule was persisted.
	ResultGenerated GenerateResult = "generated"
	// ResultAlreadyExists means installments were already present and the
	// call was an idempotent no-op.
	ResultAlreadyExists GenerateResult = "already-exists"
)
