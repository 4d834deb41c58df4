package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fezalogistics/feza/internal/archive"
	auditpostgres "github.com/fezalogistics/feza/internal/audit/postgres"
	"github.com/fezalogistics/feza/internal/config"
	"github.com/fezalogistics/feza/internal/observability"
	s3store "github.com/fezalogistics/feza/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("feza-archiver")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := auditpostgres.Open(context.Background(), auditpostgres.DBConfigFrom(cfg.Store))
	if err != nil {
		logger.Error("failed to open store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store, err := s3store.New(context.Background(), s3store.ConfigFrom(cfg.ObjectStore))
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	svc := &archive.Service{
		Repo:        auditpostgres.NewRepository(db),
		ObjectStore: store,
		Config:      archive.ConfigFrom(cfg.Archive),
		Logger:      logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("archiver worker started",
		slog.Duration("interval", cfg.Archive.Interval),
		slog.Duration("retention_age", cfg.Archive.RetentionAge),
	)
	if err := svc.Run(ctx); err != nil {
		logger.Error("archiver worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("archiver worker stopped")
}
