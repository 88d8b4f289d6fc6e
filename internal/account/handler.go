package account

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianbank/meridianbank/internal/platform/httpx"
)

// Handler wires HTTP endpoints for account lifecycle.
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

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/accounts", h.open)
	r.Get("/accounts/{id}", h.get)
	r.Put("/accounts/{id}/interest-rate", h.overrideRate)
	r.Get("/customers/{customerID}/accounts", h.listForCustomer)
}

type openRequest struct {
	CustomerID        int64   `json:"customerId" validate:"required,gt=0"`
	AccountTypeID     int64   `json:"accountTypeId" validate:"required,gt=0"`
	InitialBalance    float64 `json:"initialBalance" validate:"gte=0"`
	StartDate         string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	TermDays          int     `json:"termDays" validate:"gte=0"`
	DailyContribution float64 `json:"dailyContribution" validate:"gte=0"`
	ContributionDay   int     `json:"contributionDay" validate:"gte=0,lte=31"`
	EMIDueDay         *int    `json:"emiDueDay" validate:"omitempty,gte=1,lte=31"`
	CreatedBy         int64   `json:"createdBy"`
}

type overrideRateRequest struct {
	Rate float64 `json:"rate" validate:"gte=0"`
}

// accountResponse is the external account shape: resolved parameters only,
// never the raw snapshot.
type accountResponse struct {
	ID                int64      `json:"id"`
	CustomerID        int64      `json:"customerId"`
	AccountTypeID     int64      `json:"accountTypeId"`
	Family            Family     `json:"family"`
	Status            Status     `json:"status"`
	Balance           float64    `json:"balance"`
	StartDate         string     `json:"startDate"`
	MaturityDate      *string    `json:"maturityDate,omitempty"`
	InterestRate      float64    `json:"interestRate"`
	CalculationMethod string     `json:"calculationMethod"`
	PenaltyRate       float64    `json:"penaltyRate"`
	LockInDays        int        `json:"lockInDays"`
	DailyContribution float64    `json:"dailyContribution,omitempty"`
	ContributionDay   int        `json:"contributionDay,omitempty"`
	LastInterestAt    *time.Time `json:"lastInterestAt,omitempty"`
}

func toAccountResponse(a *Account) accountResponse {
	resp := accountResponse{
		ID:                a.ID,
		CustomerID:        a.CustomerID,
		AccountTypeID:     a.AccountTypeID,
		Family:            a.Family(),
		Status:            a.Status,
		Balance:           a.Balance,
		StartDate:         a.StartDate.Format(time.DateOnly),
		InterestRate:      a.EffectiveInterestRate(),
		CalculationMethod: a.EffectiveCalculationMethod(),
		PenaltyRate:       a.EffectivePenaltyRate(),
		LockInDays:        a.EffectiveLockInDays(),
		DailyContribution: a.DailyContribution,
		ContributionDay:   a.ContributionDay,
		LastInterestAt:    a.LastInterestAt,
	}
	if a.MaturityDate != nil {
		s := a.MaturityDate.Format(time.DateOnly)
		resp.MaturityDate = &s
	}
	return resp
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := OpenInput{
		CustomerID:        req.CustomerID,
		AccountTypeID:     req.AccountTypeID,
		InitialBalance:    req.InitialBalance,
		TermDays:          req.TermDays,
		DailyContribution: req.DailyContribution,
		ContributionDay:   req.ContributionDay,
		EMIDueDay:         req.EMIDueDay,
		CreatedBy:         req.CreatedBy,
	}
	if req.StartDate != "" {
		start, err := time.Parse(time.DateOnly, req.StartDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "startDate must be YYYY-MM-DD")
			return
		}
		input.StartDate = start
	}

	a, err := h.service.Open(r.Context(), input)
	if err != nil {
		h.logger.Error("open account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountResponse(a))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(a))
}

func (h *Handler) listForCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "customer id must be an integer")
		return
	}
	accounts, err := h.service.ListForCustomer(r.Context(), customerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toAccountResponse(&accounts[i]))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) overrideRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "account id must be an integer")
		return
	}
	var req overrideRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.OverrideInterestRate(r.Context(), id, req.Rate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
