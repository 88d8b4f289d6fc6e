package loan

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianbank/meridianbank/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the amortization schedule.
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

// MountRoutes registers loan routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/loans/{id}/activate", h.activate)
	r.Post("/loans/{id}/schedule", h.generateSchedule)
	r.Get("/loans/{id}/schedule", h.schedule)
}

type activateRequest struct {
	Principal  float64 `json:"principal" validate:"required,gt=0"`
	TermMonths int     `json:"termMonths" validate:"gte=0"`
}

type activateResponse struct {
	AccountID  int64   `json:"accountId"`
	Principal  float64 `json:"principal"`
	EMIAmount  float64 `json:"emiAmount"`
	TermMonths int     `json:"termMonths"`
	Balance    float64 `json:"balance"`
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	var req activateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	a, err := h.service.Activate(r.Context(), accountID, req.Principal, req.TermMonths)
	if err != nil {
		h.logger.Error("activate loan",
			slog.Int64("account_id", accountID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := activateResponse{
		AccountID: a.ID,
		Principal: a.LoanPrincipal(),
		Balance:   a.Balance,
	}
	if a.Snapshot.EMIAmount != nil {
		resp.EMIAmount = *a.Snapshot.EMIAmount
	}
	if a.Snapshot.LoanTermMonths != nil {
		resp.TermMonths = *a.Snapshot.LoanTermMonths
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) generateSchedule(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	result, err := h.service.GenerateSchedule(r.Context(), accountID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result == ResultAlreadyExists {
		status = http.StatusOK
	}
	httpx.JSON(w, status, map[string]string{"result": string(result)})
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	installments, err := h.service.Schedule(r.Context(), accountID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, installments)
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
