package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"matchmarket-service/internal/config"
	"matchmarket-service/internal/database"
	"matchmarket-service/internal/notify"
	"matchmarket-service/internal/services"
	"matchmarket-service/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load env
	config.LoadEnv("../../.env", ".env")
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect DB
	st, err := database.OpenStore(cfg, false)
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

	// Redis
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisURL}
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	// the next offer of a cascade is armed from here
	waitlistService := services.NewWaitlistService(st, notifier, worker.NewOfferScheduler(client), logger, cfg.Options())

	logger.Info("Starting Asynq Worker...")
	if err := worker.StartWorker(redisOpt, waitlistService, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
