package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fezalogistics/feza/internal/demo/traffic"
)

func main() {
	_ = godotenv.Load()

	cfg, err := traffic.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load demo traffic config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	service, err := traffic.NewService(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize demo traffic driver", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(
		"demo traffic driver started",
		slog.String("api_url", cfg.APIBaseURL),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("interval", cfg.Interval),
		slog.Bool("adversarial", cfg.Adversarial),
	)

	err = service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("demo traffic driver stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo traffic driver stopped")
}
