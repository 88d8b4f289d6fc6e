package httpx

import (
	"errors"
	"net/http"

	"github.com/meridianbank/meridianbank/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrWrongAccountFamily),
		errors.Is(err, shared.ErrClosureBeforeStart):
		Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, shared.ErrAccountClosed):
		Problem(w, http.StatusConflict, "Account Closed", err.Error())
	case errors.Is(err, shared.ErrLockHeld):
		Problem(w, http.StatusConflict, "Busy", "account is busy, retry shortly")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
