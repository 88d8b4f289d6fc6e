package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/closure"
	"github.com/meridianbank/meridianbank/internal/jobs"
	"github.com/meridianbank/meridianbank/internal/ledger"
	"github.com/meridianbank/meridianbank/internal/loan"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Metrics *jobs.Metrics

	AccountHandler *account.Handler
	LedgerHandler  *ledger.Handler
	LoanHandler    *loan.Handler
	AccrualHandler *accrual.Handler
	ClosureHandler *closure.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Warn("health ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.AccountHandler != nil {
			params.AccountHandler.MountRoutes(r)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.LoanHandler != nil {
			params.LoanHandler.MountRoutes(r)
		}
		if params.AccrualHandler != nil {
			params.AccrualHandler.MountRoutes(r)
		}
		if params.ClosureHandler != nil {
			params.ClosureHandler.MountRoutes(r)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
