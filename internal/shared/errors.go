package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAccountClosed indicates an operation against a closed account.
	ErrAccountClosed = errors.New("account closed")
	// ErrWrongAccountFamily indicates the account family does not support the operation.
	ErrWrongAccountFamily = errors.New("wrong account family")
	// ErrInvalidAmount indicates a non-positive or out-of-range amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrClosureBeforeStart indicates a closure date before the account start date.
	ErrClosureBeforeStart = errors.New("closure date before account start date")
	// ErrLockHeld indicates another operation holds the account lock.
	ErrLockHeld = errors.New("account lock held")
)

// UserSafeMessage returns a message suitable for API responses. Sentinel
// errors pass through unchanged; anything else collapses to a generic
// message so internals never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAccountClosed),
		errors.Is(err, ErrWrongAccountFamily),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrClosureBeforeStart),
		errors.Is(err, ErrLockHeld):
		return err.Error()
	default:
		return "internal error"
	}
}
