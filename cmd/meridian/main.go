package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/app"
	"github.com/meridianbank/meridianbank/internal/closure"
	internaljobs "github.com/meridianbank/meridianbank/internal/jobs"
	"github.com/meridianbank/meridianbank/internal/ledger"
	"github.com/meridianbank/meridianbank/internal/loan"
	"github.com/meridianbank/meridianbank/internal/platform/cache"
	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/internal/shared"
	"github.com/meridianbank/meridianbank/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	locker := shared.NewAccountLocker(redisClient, 30*time.Second)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	accountRepo := account.NewRepository(pool)
	accountService := account.NewService(accountRepo, logger)
	accountHandler := account.NewHandler(logger, accountService)

	loanRepo := loan.NewRepository(pool)
	loanService := loan.NewService(accountRepo, loanRepo, logger)
	loanHandler := loan.NewHandler(logger, loanService)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, loanService, locker, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	accrualRepo := accrual.NewRepository(pool)
	accrualService := accrual.NewService(accountRepo, accrualRepo, logger)
	accrualHandler := accrual.NewHandler(logger, accrualService)

	closureRepo := closure.NewRepository(pool)
	notifier := jobs.NewBreakNotifier(jobsClient, cfg.OpsEmail)
	closureService := closure.NewService(accountRepo, accrualRepo, closureRepo, notifier, locker, logger)
	closureHandler := closure.NewHandler(logger, closureService)

	metrics := internaljobs.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Pool:           pool,
		Metrics:        metrics,
		AccountHandler: accountHandler,
		LedgerHandler:  ledgerHandler,
		LoanHandler:    loanHandler,
		AccrualHandler: accrualHandler,
		ClosureHandler: closureHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
