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

	"matchmarket-service/internal/config"
	"matchmarket-service/internal/database"
	grpcServer "matchmarket-service/internal/grpc"
	"matchmarket-service/internal/handlers"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/scheduler"
	"matchmarket-service/internal/services"
	"matchmarket-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config.LoadEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}

	// Initialize Database
	st, err := database.OpenStore(cfg, true)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	notifier, err := notify.New(cfg.Notifier, cfg.RabbitMQURL, cfg.PushServiceURL, logger)
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		os.Exit(1)
	}
	defer notifier.Close()

	// Redis/Asynq Client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURL})
	defer asynqClient.Close()

	opts := cfg.Options()
	waitlistService := services.NewWaitlistService(st, notifier, worker.NewOfferScheduler(asynqClient), logger, opts)
	settlementService := services.NewSettlementService(st, notifier, logger, opts)
	earningsService := services.NewEarningsService(st, settlementService, logger, opts)
	monitorService := services.NewMatchMonitorService(st, notifier, logger, opts)

	// Start Cron Scheduler
	cronScheduler := scheduler.NewScheduler(&scheduler.Jobs{
		Monitor:     monitorService,
		Waitlist:    waitlistService,
		Settlements: settlementService,
		Logger:      logger,
		Location:    opts.Location,
	}, logger, cfg.Schedules())
	if err := cronScheduler.Start(); err != nil {
		logger.Error("scheduler started with invalid jobs", "error", err)
	}

	// Start gRPC server
	grpcSrv := grpcServer.NewServer(logger)
	go func() {
		if err := grpcSrv.StartGRPCServer(cfg.GRPCPort); err != nil {
			logger.Error("gRPC server stopped", "error", err)
		}
	}()

	r := gin.Default()
	handlers.NewHandler(waitlistService, earningsService, settlementService, monitorService, logger).
		RegisterRoutes(r, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}
	go func() {
		logger.Info("HTTP server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcSrv.Stop()
	<-cronScheduler.Stop().Done()
	logger.Info("stopped gracefully")
}
