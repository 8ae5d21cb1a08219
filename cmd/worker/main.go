package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stashspace/stashspace/internal/app"
	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/booking/offers"
	"github.com/stashspace/stashspace/internal/catalog"
	"github.com/stashspace/stashspace/internal/notify"
	"github.com/stashspace/stashspace/internal/platform/cache"
	"github.com/stashspace/stashspace/internal/platform/db"
	"github.com/stashspace/stashspace/internal/users"
	"github.com/stashspace/stashspace/jobs"
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	usersRepo := users.NewRepository(pool)
	notifyRepo := notify.NewRepository(pool)
	dispatcher := notify.NewDispatcher(notifyRepo, usersRepo, redisClient, logger)

	guard := authz.NewGuard(authz.NewPgOracle(usersRepo, pool))
	catalogRepo := catalog.NewRepository(pool)
	notifier := notify.NewNotifier(jobsClient, logger)
	offerRepo := offers.NewRepository(pool)
	offerService := offers.NewService(offerRepo, guard, catalogRepo, notifier.ForOffers(), logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyDispatch, Handler: jobs.NewNotifyDispatchHandler(dispatcher, logger)},
			{Type: jobs.TaskOffersExpire, Handler: jobs.NewOffersExpireHandler(offerService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OfferExpiryCron, Task: jobs.NewOffersExpireTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
