package traffic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service replays sample questions against the assistant API so dashboards
// and interaction logs have realistic traffic in non-production stacks.
type Service struct {
	cfg       Config
	log       *slog.Logger
	http      *http.Client
	generator *Generator
	mu        sync.Mutex
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Success bool   `json:"success"`
	Type    string `json:"type"`
	Error   string `json:"error"`
}

// BatchSummary counts answers by response type; failures are keyed by
// their error code.
type BatchSummary struct {
	Answered map[string]int
	Failed   map[string]int
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if cfg.UserCardinality <= 0 {
		return nil, fmt.Errorf("user cardinality must be > 0")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Service{
		cfg:       cfg,
		log:       logger,
		http:      client,
		generator: NewGenerator(cfg.Seed, cfg.DriverID, cfg.UserCardinality, cfg.Adversarial),
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.askBatch(ctx); err != nil {
			s.log.Error("failed to send demo questions", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) askBatch(ctx context.Context) (BatchSummary, error) {
	summary := BatchSummary{Answered: map[string]int{}, Failed: map[string]int{}}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)
	for i := 0; i < s.cfg.BatchSize; i++ {
		question := s.nextQuestion()
		group.Go(func() error {
			response, err := s.ask(groupCtx, question)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if response.Success {
				summary.Answered[response.Type]++
			} else {
				summary.Failed[response.Error]++
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return summary, err
	}

	s.log.Info(
		"sent demo questions",
		slog.Int("batch_size", s.cfg.BatchSize),
		slog.Any("answered", summary.Answered),
		slog.Any("failed", summary.Failed),
	)
	return summary, nil
}

func (s *Service) nextQuestion() Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generator.NextQuestion()
}

func (s *Service) ask(ctx context.Context, question Question) (askResponse, error) {
	raw, err := json.Marshal(askRequest{Query: question.Text})
	if err != nil {
		return askResponse{}, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+"/v1/assistant/query", bytes.NewReader(raw))
	if err != nil {
		return askResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", question.UserID)
	req.Header.Set("X-Session-ID", question.SessionID)
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return askResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return askResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return askResponse{}, fmt.Errorf("assistant request status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded askResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return askResponse{}, fmt.Errorf("decode response: %w", err)
	}
	s.log.Debug("demo question answered",
		slog.String("kind", string(question.Kind)),
		slog.String("user_id", question.UserID),
		slog.Bool("success", decoded.Success),
		slog.String("type", decoded.Type),
	)
	return decoded, nil
}
