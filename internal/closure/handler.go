package closure

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridianbank/meridianbank/internal/platform/httpx"
)

// Handler wires HTTP endpoints for payout quotes and account breaks.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers closure routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{id}/payout/maturity", h.maturityPayout)
	r.Get("/accounts/{id}/payout/premature", h.prematurePayout)
	r.Post("/accounts/{id}/break", h.breakAccount)
}

func (h *Handler) maturityPayout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	payout, err := h.service.MaturityPayout(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payout)
}

func (h *Handler) prematurePayout(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	var closureDate time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		closureDate, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "date must be YYYY-MM-DD")
			return
		}
	}
	payout, err := h.service.PrematureClosure(r.Context(), id, closureDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payout)
}

func (h *Handler) breakAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	result, err := h.service.Break(r.Context(), id)
	if err != nil {
		h.logger.Error("break account",
			slog.Int64("account_id", id),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
