package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianbank/meridianbank/internal/account"
	"github.com/meridianbank/meridianbank/internal/accrual"
	"github.com/meridianbank/meridianbank/internal/app"
	internaljobs "github.com/meridianbank/meridianbank/internal/jobs"
	"github.com/meridianbank/meridianbank/internal/platform/cache"
	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/internal/shared"
	"github.com/meridianbank/meridianbank/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	accountRepo := account.NewRepository(pool)
	accrualRepo := accrual.NewRepository(pool)
	engine := accrual.NewEngine(accountRepo, accrualRepo, locker, logger)

	metrics := internaljobs.NewMetrics()
	accrualJobs := jobs.NewAccrualJobs(engine, metrics, logger)

	dailyTask, err := jobs.NewAccrualDailyTask(time.Time{})
	if err != nil {
		logger.Error("build daily task", slog.Any("error", err))
		os.Exit(1)
	}
	recurringTask, err := jobs.NewAccrualRecurringTask(time.Time{})
	if err != nil {
		logger.Error("build recurring task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Mailer:    jobs.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, logger),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAccrualDaily, Handler: accrualJobs.HandleDaily},
			{Type: jobs.TaskAccrualRecurring, Handler: accrualJobs.HandleRecurring},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AccrualDailyCron, Task: dailyTask},
			{Spec: cfg.AccrualRecurringCron, Task: recurringTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started",
		slog.String("daily_cron", cfg.AccrualDailyCron),
		slog.String("recurring_cron", cfg.AccrualRecurringCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
