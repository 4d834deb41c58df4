package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/fezalogistics/feza/internal/archive"
	"github.com/fezalogistics/feza/internal/assistant"
	"github.com/fezalogistics/feza/internal/audit"
	"github.com/fezalogistics/feza/internal/auth"
	"github.com/fezalogistics/feza/internal/config"
	"github.com/fezalogistics/feza/internal/observability"
	"github.com/fezalogistics/feza/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

type Assistant interface {
	Ask(ctx context.Context, req assistant.Request) assistant.Response
}

type HistoryReader interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]audit.Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (audit.Entry, error)
}

type ArchiveRunner interface {
	RunOnce(ctx context.Context) (archive.RunSummary, error)
	Query(ctx context.Context, statement string) (query.Result, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Assistant         Assistant
	History           HistoryReader
	Archive           ArchiveRunner
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	limiter := newAssistantLimiter(cfg.Assistant.MaxConcurrent, cfg.Assistant.QueueTimeout)
	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/assistant/query", func(w http.ResponseWriter, r *http.Request) {
		handleAssistantQuery(deps, limiter, w, r)
	})
	protected.HandleFunc("GET /v1/assistant/history", func(w http.ResponseWriter, r *http.Request) {
		handleAssistantHistory(deps, w, r)
	})
	protected.HandleFunc("GET /v1/assistant/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleAssistantHistoryEntry(deps, w, r)
	})
	protected.HandleFunc("POST /v1/archive/run", func(w http.ResponseWriter, r *http.Request) {
		handleArchiveRun(deps, w, r)
	})
	protected.HandleFunc("POST /v1/archive/query", func(w http.ResponseWriter, r *http.Request) {
		handleArchiveQuery(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	} else {
		protectedHandler = auth.TrustedHeaderMiddleware()(protectedHandler)
	}
	mux.Handle("POST /v1/assistant/query", protectedHandler)
	mux.Handle("GET /v1/assistant/history", protectedHandler)
	mux.Handle("GET /v1/assistant/history/{id}", protectedHandler)
	mux.Handle("POST /v1/archive/run", protectedHandler)
	mux.Handle("POST /v1/archive/query", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckStore(ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New("store is not configured")
		}
		return ping(ctx)
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Archive.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// assistantLimiter caps concurrent pipeline runs. Callers wait up to
// queueTimeout for a slot before being turned away.
type assistantLimiter struct {
	slots        *semaphore.Weighted
	queueTimeout time.Duration
}

func newAssistantLimiter(maxConcurrent int, queueTimeout time.Duration) *assistantLimiter {
	if maxConcurrent <= 0 {
		return nil
	}
	if queueTimeout <= 0 {
		queueTimeout = 5 * time.Second
	}
	return &assistantLimiter{
		slots:        semaphore.NewWeighted(int64(maxConcurrent)),
		queueTimeout: queueTimeout,
	}
}

func (l *assistantLimiter) acquire(ctx context.Context) (func(), bool) {
	if l == nil {
		return func() {}, true
	}
	if l.slots.TryAcquire(1) {
		return func() { l.slots.Release(1) }, true
	}
	waitCtx, cancel := context.WithTimeout(ctx, l.queueTimeout)
	defer cancel()
	if err := l.slots.Acquire(waitCtx, 1); err != nil {
		return nil, false
	}
	return func() { l.slots.Release(1) }, true
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
