package accrual

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianbank/meridianbank/internal/platform/httpx"
)

// Handler wires HTTP endpoints for contributions and the interest log.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers accrual routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts/{id}/contributions", h.recordContribution)
	r.Get("/accounts/{id}/contributions", h.listContributions)
	r.Get("/accounts/{id}/interest-logs", h.listInterestLogs)
}

type contributionRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	DepositDate string  `json:"depositDate" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) recordContribution(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	var req contributionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var depositDate time.Time
	if req.DepositDate != "" {
		depositDate, _ = time.Parse(time.DateOnly, req.DepositDate)
	}
	c, err := h.service.RecordContribution(r.Context(), accountID, req.Amount, depositDate)
	if err != nil {
		h.logger.Error("record contribution",
			slog.Int64("account_id", accountID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) listContributions(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	contributions, err := h.service.Contributions(r.Context(), accountID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, contributions)
}

func (h *Handler) listInterestLogs(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "from must be YYYY-MM-DD")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "to must be YYYY-MM-DD")
		return
	}
	logs, err := h.service.InterestLogs(r.Context(), accountID, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
