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

	"github.com/joho/godotenv"

	"github.com/fezalogistics/feza/internal/api"
	"github.com/fezalogistics/feza/internal/archive"
	"github.com/fezalogistics/feza/internal/assistant"
	auditpostgres "github.com/fezalogistics/feza/internal/audit/postgres"
	"github.com/fezalogistics/feza/internal/auth"
	"github.com/fezalogistics/feza/internal/config"
	insightspostgres "github.com/fezalogistics/feza/internal/insights/postgres"
	"github.com/fezalogistics/feza/internal/llm"
	"github.com/fezalogistics/feza/internal/narrator"
	"github.com/fezalogistics/feza/internal/nl2sql"
	"github.com/fezalogistics/feza/internal/observability"
	"github.com/fezalogistics/feza/internal/prompt"
	duckdbengine "github.com/fezalogistics/feza/internal/query/duckdb"
	pgengine "github.com/fezalogistics/feza/internal/query/postgres"
	"github.com/fezalogistics/feza/internal/retry"
	s3store "github.com/fezalogistics/feza/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("feza-api")
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

	repo := auditpostgres.NewRepository(db)
	gateway, err := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL: cfg.Assistant.OllamaURL,
		Model:   cfg.Assistant.Model,
		Timeout: cfg.Assistant.Timeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.Assistant.MaxAttempts,
			Delay:       cfg.Assistant.RetryDelay,
		},
		TopP:   cfg.Assistant.TopP,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to initialize model gateway", slog.Any("error", err))
		os.Exit(1)
	}

	guard := nl2sql.NewGuard(cfg.Assistant.DefaultLimit)
	service, err := assistant.New(assistant.Dependencies{
		Prompt:  prompt.NewBuilder(prompt.DefaultConfig(cfg.Assistant.DefaultLimit)),
		Gateway: gateway,
		Guard:   guard,
		Engine:  pgengine.NewEngine(db, cfg.Assistant.QueryTimeout),
		Narrator: narrator.New(gateway, narrator.Config{
			PreviewRows: cfg.Assistant.PreviewRows,
			Options: llm.Options{
				Temperature: cfg.Assistant.NarrationTemperature,
				MaxTokens:   cfg.Assistant.NarrationMaxTokens,
				TopP:        cfg.Assistant.TopP,
			},
		}, logger),
		Insights: insightspostgres.NewSource(db, insightspostgres.Config{Timeout: 2 * time.Second}),
		Log:      repo,
		Logger:   logger,
	}, assistant.ConfigFrom(cfg.Assistant))
	if err != nil {
		logger.Error("failed to initialize assistant", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:    logger,
		Assistant: service,
		History:   repo,
		Readiness: api.CombineReadinessChecks(
			repo.HealthCheck,
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.ConfigFrom(cfg.ObjectStore))
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archive = &archive.Service{
			Repo:        repo,
			ObjectStore: objectStore,
			Engine:      duckdbengine.NewEngine(objectStore),
			Guard:       guard,
			Config:      archive.ConfigFrom(cfg.Archive),
			Logger:      logger,
		}
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("model", gateway.Model()),
			slog.Bool("archive_enabled", cfg.Archive.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
