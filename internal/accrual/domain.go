package accrual

import "time"

// InterestLog is one append-only posting of accrued interest. The row is
// the audit trail that a run for a given date happened exactly once.
type InterestLog struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"accountId"`
	Amount         float64   `json:"amount"`
	BalanceBefore  float64   `json:"balanceBefore"`
	BalanceAfter   float64   `json:"balanceAfter"`
	CalculatedDate time.Time `json:"calculatedDate"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Contribution is one recurring-deposit installment. Append-only; the RD
// accrual and closure simulations replay these in deposit order.
type Contribution struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"accountId"`
	Amount      float64   `json:"amount"`
	DepositDate time.Time `json:"depositDate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RunReport summarizes one batch accrual run.
type RunReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
