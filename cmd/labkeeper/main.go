package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/labkeeper/labkeeper/internal/app"
	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/billing"
	"github.com/labkeeper/labkeeper/internal/booking"
	"github.com/labkeeper/labkeeper/internal/equipment"
	"github.com/labkeeper/labkeeper/internal/platform/cache"
	"github.com/labkeeper/labkeeper/internal/platform/db"
	"github.com/labkeeper/labkeeper/internal/shared"
	"github.com/labkeeper/labkeeper/internal/waitlist"
	"github.com/labkeeper/labkeeper/jobs"
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
		logger.Warn("redis unavailable, settings cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	resolver := authz.NewResolver(authz.DefaultTable())
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}
	auditLogger := shared.NewAuditLogger(pool)

	equipmentRepo := equipment.NewRepository(pool)
	equipmentService := equipment.NewService(equipmentRepo, auditLogger)
	equipmentHandler := equipment.NewHandler(logger, equipmentService, authzMiddleware)

	settingsProvider := billing.NewSettingsProvider(pool, redisClient, cfg.SettingsCacheTTL)
	usageRepo := billing.NewRepository(pool)
	billingService := billing.NewService(usageRepo, equipmentService, settingsProvider, resolver)
	billingHandler := billing.NewHandler(logger, billingService, authzMiddleware)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	bookingRepo := booking.NewRepository(pool)
	bookingService := booking.NewService(bookingRepo, equipmentService, settingsProvider, resolver, auditLogger, jobsClient, logger)
	bookingHandler := booking.NewHandler(logger, bookingService, authzMiddleware)

	waitlistRepo := waitlist.NewRepository(pool)
	waitlistService := waitlist.NewService(waitlistRepo, resolver, logger)
	waitlistHandler := waitlist.NewHandler(logger, waitlistService, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthzMiddleware:  authzMiddleware,
		EquipmentHandler: equipmentHandler,
		BookingHandler:   bookingHandler,
		BillingHandler:   billingHandler,
		WaitlistHandler:  waitlistHandler,
		JobsHandler:      jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
