package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/labkeeper/labkeeper/internal/app"
	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/platform/db"
	"github.com/labkeeper/labkeeper/internal/waitlist"
	"github.com/labkeeper/labkeeper/jobs"
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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	resolver := authz.NewResolver(authz.DefaultTable())
	waitlistRepo := waitlist.NewRepository(pool)
	waitlistService := waitlist.NewService(waitlistRepo, resolver, logger)

	promotion := jobs.NewPromotionHandler(waitlistService, jobsClient, logger)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeWaitlistPromote, Handler: promotion.HandleWaitlistPromote},
			{Type: jobs.TaskTypeNotify, Handler: jobs.HandleNotifyTask(logger)},
		},
	})

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}
