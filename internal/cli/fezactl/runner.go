package fezactl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	UserID     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type askResponse struct {
	Success     bool   `json:"success"`
	Response    string `json:"response"`
	SQL         string `json:"sql"`
	Error       string `json:"error"`
	UserMessage string `json:"user_message"`
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("fezactl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "Feza assistant API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	userID := fs.String("user-id", defaults.UserID, "X-User-ID header (used when auth is disabled)")
	sessionID := fs.String("session-id", defaults.SessionID, "X-Session-ID header")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")
	limit := fs.Int("limit", 0, "history: number of entries to return (1-100)")
	rawJSON := fs.Bool("json", false, "ask: print the full JSON response")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	argument := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	var (
		method string
		path   string
		body   any
	)
	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "ask":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		method, path, body = http.MethodPost, "/v1/assistant/query", map[string]string{"query": argument}
	case "history":
		method, path = http.MethodGet, "/v1/assistant/history"
		if *limit > 0 {
			path += "?" + url.Values{"limit": {strconv.Itoa(*limit)}}.Encode()
		}
	case "archive-run":
		method, path = http.MethodPost, "/v1/archive/run"
	case "archive-query":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "archive-query requires a SQL statement")
			return 2
		}
		method, path, body = http.MethodPost, "/v1/archive/query", map[string]string{"sql": argument}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, body, headers{
		apiKey:    *apiKey,
		userID:    *userID,
		sessionID: *sessionID,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if command == "ask" && !*rawJSON {
		return printAnswer(stdout, stderr, responseBody)
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func printAnswer(stdout, stderr io.Writer, raw []byte) int {
	var answer askResponse
	if err := json.Unmarshal(raw, &answer); err != nil {
		_, _ = fmt.Fprintf(stderr, "decode answer: %v\n", err)
		return 1
	}
	if !answer.Success {
		_, _ = fmt.Fprintln(stderr, firstNonEmpty(answer.UserMessage, answer.Error))
		return 1
	}
	_, _ = fmt.Fprintln(stdout, answer.Response)
	if answer.SQL != "" {
		_, _ = fmt.Fprintf(stdout, "\nSQL: %s\n", answer.SQL)
	}
	return 0
}

type headers struct {
	apiKey    string
	userID    string
	sessionID string
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload any, h headers) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(h.apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(h.apiKey))
	}
	if strings.TrimSpace(h.userID) != "" {
		req.Header.Set("X-User-ID", strings.TrimSpace(h.userID))
	}
	if strings.TrimSpace(h.sessionID) != "" {
		req.Header.Set("X-Session-ID", strings.TrimSpace(h.sessionID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: fezactl [flags] <command> [argument]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health               GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  ask <question>       POST /v1/assistant/query")
	_, _ = fmt.Fprintln(w, "  history              GET /v1/assistant/history")
	_, _ = fmt.Fprintln(w, "  archive-run          POST /v1/archive/run")
	_, _ = fmt.Fprintln(w, "  archive-query <sql>  POST /v1/archive/query")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
