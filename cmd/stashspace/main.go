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

	"github.com/stashspace/stashspace/internal/app"
	"github.com/stashspace/stashspace/internal/auth"
	"github.com/stashspace/stashspace/internal/authz"
	"github.com/stashspace/stashspace/internal/booking/inquiries"
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
	authService := auth.NewService(usersRepo, redisClient)
	authHandler := auth.NewHandler(logger, authService)

	guard := authz.NewGuard(authz.NewPgOracle(usersRepo, pool))
	catalogRepo := catalog.NewRepository(pool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	notifier := notify.NewNotifier(jobsClient, logger)
	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(notifyRepo, redisClient, logger)
	notifyHandler := notify.NewHandler(logger, notifyService)

	inquiryRepo := inquiries.NewRepository(pool)
	inquiryService := inquiries.NewService(inquiryRepo, guard, catalogRepo, notifier.ForInquiries(), logger)
	inquiryHandler := inquiries.NewHandler(logger, inquiryService)

	offerRepo := offers.NewRepository(pool)
	offerService := offers.NewService(offerRepo, guard, catalogRepo, notifier.ForOffers(), logger)
	offerHandler := offers.NewHandler(logger, offerService)

	jobHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthService:         authService,
		AuthHandler:         authHandler,
		InquiryHandler:      inquiryHandler,
		OfferHandler:        offerHandler,
		NotificationHandler: notifyHandler,
		CatalogHandler:      catalogHandler,
		JobHandler:          jobHandler,
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
