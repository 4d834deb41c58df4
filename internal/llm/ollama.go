package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fezalogistics/feza/internal/observability"
	"github.com/fezalogistics/feza/internal/retry"
)

const (
	defaultOllamaModel   = "qwen2.5:7b-instruct"
	defaultOllamaTimeout = 30 * time.Second
	defaultTopP          = 0.9
	maxErrorBodyBytes    = 1024
)

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Retry   retry.Policy
	TopP    float64
	Logger  *slog.Logger
}

type OllamaClient struct {
	baseURL string
	model   string
	topP    float64
	policy  retry.Policy
	client  *http.Client
	logger  *slog.Logger
}

func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	topP := cfg.TopP
	if topP <= 0 {
		topP = defaultTopP
	}
	policy := cfg.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:   model,
		topP:    topP,
		policy:  policy,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func (c *OllamaClient) Model() string {
	return c.model
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int      `json:"num_predict"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	topP := opts.TopP
	if topP <= 0 {
		topP = c.topP
	}
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			TopP:        topP,
			Stop:        opts.Stop,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	var text string
	shouldRetry := func(error) bool { return ctx.Err() == nil }
	attempts, err := retry.Do(ctx, c.policy, shouldRetry, func(ctx context.Context, attempt int) error {
		out, failure := c.attempt(ctx, body)
		if failure != nil {
			observability.IncrementLLMAttempt(string(failure.Kind))
			c.logger.Warn("model attempt failed",
				"model", c.model,
				"attempt", attempt,
				"max_attempts", c.policy.MaxAttempts,
				"kind", failure.Kind,
				"error", failure.Error(),
			)
			return failure
		}
		observability.IncrementLLMAttempt("success")
		text = out
		return nil
	})
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			return "", failure.Surface()
		}
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	c.logger.Debug("model generation completed", "model", c.model, "attempts", attempts, "chars", len(text))
	return text, nil
}

func (c *OllamaClient) attempt(ctx context.Context, body []byte) (string, *Failure) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", &Failure{Kind: FailureConnection, Detail: "build generate request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &Failure{
			Kind:       FailureHTTPStatus,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(snippet)),
		}
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}
	var parsed generateResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", &Failure{Kind: FailureMalformedBody, Err: err}
	}
	text := strings.TrimSpace(parsed.Response)
	if text == "" {
		return "", &Failure{Kind: FailureEmptyText}
	}
	return text, nil
}

func classifyTransportError(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	return &Failure{Kind: FailureConnection, Err: err}
}
