package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fezalogistics/feza/internal/audit"
	"github.com/fezalogistics/feza/internal/config"
	"github.com/fezalogistics/feza/internal/insights"
	"github.com/fezalogistics/feza/internal/llm"
	"github.com/fezalogistics/feza/internal/nl2sql"
	"github.com/fezalogistics/feza/internal/query"
)

type ResponseType string

const (
	TypeGeneral        ResponseType = "general"
	TypeDatabase       ResponseType = "database"
	TypeConversational ResponseType = "conversational"
	TypeError          ResponseType = "error"
)

const (
	MessageUnavailable  = "The assistant is temporarily unavailable. Please try again in a moment."
	MessageReadOnly     = "I can only retrieve data, not modify it. Please ask a question about your records instead."
	MessageQueryTrouble = "I had trouble running that query. Could you try rephrasing your question?"
	MessageGeneric      = "I'm having trouble processing that. Could you rephrase your question?"
	MessageBusy         = "The assistant is busy right now. Please try again in a few seconds."
	MessageQueryMissing = "Please type a question first."
)

const auditTimeout = 3 * time.Second

type Request struct {
	UserID    string
	SessionID string
	Query     string
}

type Response struct {
	Success         bool         `json:"success"`
	Response        string       `json:"response,omitempty"`
	SQL             string       `json:"sql,omitempty"`
	Type            ResponseType `json:"type,omitempty"`
	ResultCount     *int         `json:"result_count,omitempty"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
	Error           string       `json:"error,omitempty"`
	UserMessage     string       `json:"user_message,omitempty"`
}

type PromptBuilder interface {
	Build(question string, live insights.Snapshot) (string, error)
}

type Narrator interface {
	Narrate(ctx context.Context, question string, result query.Result) string
}

type Config struct {
	MainOptions    llm.Options
	RequestTimeout time.Duration
	IncludeSQL     bool
	LiveMetrics    bool
}

func ConfigFrom(cfg config.AssistantConfig) Config {
	return Config{
		MainOptions: llm.Options{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			TopP:        cfg.TopP,
		},
		RequestTimeout: cfg.RequestTimeout,
		IncludeSQL:     cfg.IncludeSQL,
		LiveMetrics:    cfg.LiveMetrics,
	}
}

type Dependencies struct {
	Prompt   PromptBuilder
	Gateway  llm.Gateway
	Guard    *nl2sql.Guard
	Engine   query.Engine
	Narrator Narrator
	Insights insights.Source
	Log      audit.Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

type Service struct {
	prompt   PromptBuilder
	gateway  llm.Gateway
	guard    *nl2sql.Guard
	engine   query.Engine
	narrator Narrator
	insights insights.Source
	log      audit.Sink
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
}

func New(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Prompt == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("model gateway is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if deps.Narrator == nil {
		return nil, fmt.Errorf("narrator is required")
	}
	guard := deps.Guard
	if guard == nil {
		guard = nl2sql.NewGuard(nl2sql.DefaultLimit)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if cfg.MainOptions.MaxTokens <= 0 {
		cfg.MainOptions.MaxTokens = 600
	}
	return &Service{
		prompt:   deps.Prompt,
		gateway:  deps.Gateway,
		guard:    guard,
		engine:   deps.Engine,
		narrator: deps.Narrator,
		insights: deps.Insights,
		log:      deps.Log,
		logger:   logger,
		now:      now,
		cfg:      cfg,
	}, nil
}

// Ask runs one question through the pipeline. It always returns a response;
// failures are mapped to a fixed user message and the interaction is logged
// exactly once after the response is determined.
func (s *Service) Ask(ctx context.Context, req Request) Response {
	start := s.now()
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	out := s.safeRun(runCtx, req)
	elapsed := s.now().Sub(start)
	out.response.ExecutionTimeMs = elapsed.Milliseconds()

	s.record(ctx, req, out, elapsed)
	return out.response
}

func (s *Service) safeRun(ctx context.Context, req Request) (out outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("assistant pipeline panicked", "panic", fmt.Sprint(recovered), "user_id", req.UserID)
			out = failed(stageInternal, fmt.Errorf("panic: %v", recovered), out.sql)
		}
	}()
	return s.run(ctx, req)
}

func (s *Service) run(ctx context.Context, req Request) outcome {
	question := strings.TrimSpace(req.Query)
	if question == "" {
		return failed(stageInput, errors.New("query is empty"), "")
	}

	live := s.liveSnapshot(ctx)
	prompt, err := s.prompt.Build(question, live)
	if err != nil {
		return failed(stageInternal, fmt.Errorf("build prompt: %w", err), "")
	}
	s.logger.Debug("assistant prompt built", "user_id", req.UserID, "chars", len(prompt), "live_metrics", len(live))

	text, err := s.gateway.Generate(ctx, prompt, s.cfg.MainOptions)
	if err != nil {
		return failed(stageModel, err, "")
	}

	intent := nl2sql.Classify(text)
	s.logger.Debug("assistant response classified", "user_id", req.UserID, "kind", intent.Kind, "reason", intent.Reason)
	if intent.Kind == nl2sql.IntentConversational {
		return answered(TypeConversational, intent.Text)
	}

	candidate, err := nl2sql.ExtractCandidate(text)
	if err != nil {
		if errors.Is(err, nl2sql.ErrNoSQLFound) && intent.Reason == nl2sql.ReasonDefault {
			return answered(TypeGeneral, strings.TrimSpace(text))
		}
		return failed(stageExtraction, err, "")
	}
	validated, err := s.guard.Validate(candidate, text)
	if err != nil {
		return failed(stagePolicy, err, candidate)
	}
	s.logger.Debug("assistant statement validated", "user_id", req.UserID, "sql", validated.String())

	result, err := s.engine.Execute(ctx, query.Request{SQL: validated})
	if err != nil {
		return failed(stageExecution, err, validated.String())
	}

	narrative := s.narrator.Narrate(ctx, question, result)
	count := len(result.Rows)
	resp := Response{
		Success:     true,
		Response:    narrative,
		Type:        TypeDatabase,
		ResultCount: &count,
	}
	if s.cfg.IncludeSQL {
		resp.SQL = validated.String()
	}
	return outcome{response: resp, status: audit.StatusSuccess, sql: validated.String(), resultCount: count}
}

func (s *Service) liveSnapshot(ctx context.Context) insights.Snapshot {
	if s.insights == nil || !s.cfg.LiveMetrics {
		return nil
	}
	snapshot, err := s.insights.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("live business metrics unavailable", "error", err)
		return nil
	}
	return snapshot
}
