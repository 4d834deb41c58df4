package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("feza-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Store.MaxOpenConns != 20 {
		t.Fatalf("Store.MaxOpenConns = %d", cfg.Store.MaxOpenConns)
	}
	if cfg.Assistant.OllamaURL != "http://localhost:11434" {
		t.Fatalf("Assistant.OllamaURL = %q", cfg.Assistant.OllamaURL)
	}
	if cfg.Assistant.Model != "qwen2.5:7b-instruct" {
		t.Fatalf("Assistant.Model = %q", cfg.Assistant.Model)
	}
	if cfg.Assistant.MaxAttempts != 3 {
		t.Fatalf("Assistant.MaxAttempts = %d", cfg.Assistant.MaxAttempts)
	}
	if cfg.Assistant.RetryDelay != 2*time.Second {
		t.Fatalf("Assistant.RetryDelay = %s", cfg.Assistant.RetryDelay)
	}
	if cfg.Assistant.Timeout != 30*time.Second {
		t.Fatalf("Assistant.Timeout = %s", cfg.Assistant.Timeout)
	}
	if cfg.Assistant.DefaultLimit != 100 {
		t.Fatalf("Assistant.DefaultLimit = %d", cfg.Assistant.DefaultLimit)
	}
	if cfg.Assistant.NarrationTemperature != 0.7 {
		t.Fatalf("Assistant.NarrationTemperature = %f", cfg.Assistant.NarrationTemperature)
	}
	if cfg.Assistant.NarrationMaxTokens >= cfg.Assistant.MaxTokens {
		t.Fatalf("narration budget %d should be below main budget %d", cfg.Assistant.NarrationMaxTokens, cfg.Assistant.MaxTokens)
	}
	if !cfg.Assistant.IncludeSQL {
		t.Fatal("Assistant.IncludeSQL should default to true in dev")
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("feza-api", mapLookup(map[string]string{"FEZA_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.Assistant.IncludeSQL {
		t.Fatal("Assistant.IncludeSQL should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"FEZA_PROFILE":                  "test",
		"FEZA_HTTP_ADDR":                ":9999",
		"FEZA_LOG_LEVEL":                "error",
		"FEZA_AUTH_REQUIRED":            "true",
		"FEZA_AUTH_STATIC_KEYS":         "k1:u1:assistant_user",
		"FEZA_STORE_DSN":                "postgres://example",
		"FEZA_STORE_MAX_OPEN_CONNS":     "42",
		"FEZA_SERVICE_NAME":             "feza-custom",
		"FEZA_OBJECTSTORE_BUCKET":       "feza-prod",
		"FEZA_ARCHIVE_ENABLED":          "true",
		"FEZA_ARCHIVE_RETENTION_AGE":    "720h",
		"FEZA_ARCHIVE_BATCH_SIZE":       "250",
		"FEZA_OLLAMA_URL":               "http://ollama:11434",
		"FEZA_OLLAMA_MODEL":             "llama3.1:8b-instruct",
		"FEZA_AI_TIMEOUT":               "21s",
		"FEZA_AI_MAX_ATTEMPTS":          "5",
		"FEZA_AI_RETRY_DELAY":           "250ms",
		"FEZA_AI_TEMPERATURE":           "0.3",
		"FEZA_AI_MAX_TOKENS":            "900",
		"FEZA_AI_NARRATION_MAX_TOKENS":  "300",
		"FEZA_AI_NARRATION_TEMPERATURE": "0",
		"FEZA_AI_DEFAULT_LIMIT":         "50",
		"FEZA_AI_PREVIEW_ROWS":          "5",
		"FEZA_AI_MAX_CONCURRENT":        "2",
		"FEZA_AI_LIVE_METRICS":          "false",
	})
	cfg, err := Load("feza-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "feza-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Store.DSN != "postgres://example" || cfg.Store.MaxOpenConns != 42 {
		t.Fatalf("Store = %+v", cfg.Store)
	}
	if cfg.ObjectStore.Bucket != "feza-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if !cfg.Archive.Enabled || cfg.Archive.RetentionAge != 720*time.Hour || cfg.Archive.BatchSize != 250 {
		t.Fatalf("Archive = %+v", cfg.Archive)
	}
	if cfg.Assistant.OllamaURL != "http://ollama:11434" {
		t.Fatalf("Assistant.OllamaURL = %q", cfg.Assistant.OllamaURL)
	}
	if cfg.Assistant.Model != "llama3.1:8b-instruct" {
		t.Fatalf("Assistant.Model = %q", cfg.Assistant.Model)
	}
	if cfg.Assistant.Timeout != 21*time.Second {
		t.Fatalf("Assistant.Timeout = %s", cfg.Assistant.Timeout)
	}
	if cfg.Assistant.MaxAttempts != 5 {
		t.Fatalf("Assistant.MaxAttempts = %d", cfg.Assistant.MaxAttempts)
	}
	if cfg.Assistant.RetryDelay != 250*time.Millisecond {
		t.Fatalf("Assistant.RetryDelay = %s", cfg.Assistant.RetryDelay)
	}
	if cfg.Assistant.Temperature != 0.3 {
		t.Fatalf("Assistant.Temperature = %f", cfg.Assistant.Temperature)
	}
	if cfg.Assistant.NarrationTemperature != 0 {
		t.Fatalf("Assistant.NarrationTemperature = %f", cfg.Assistant.NarrationTemperature)
	}
	if cfg.Assistant.MaxTokens != 900 || cfg.Assistant.NarrationMaxTokens != 300 {
		t.Fatalf("token budgets = %d/%d", cfg.Assistant.MaxTokens, cfg.Assistant.NarrationMaxTokens)
	}
	if cfg.Assistant.DefaultLimit != 50 || cfg.Assistant.PreviewRows != 5 {
		t.Fatalf("limits = %d/%d", cfg.Assistant.DefaultLimit, cfg.Assistant.PreviewRows)
	}
	if cfg.Assistant.MaxConcurrent != 2 {
		t.Fatalf("Assistant.MaxConcurrent = %d", cfg.Assistant.MaxConcurrent)
	}
	if cfg.Assistant.LiveMetrics {
		t.Fatal("Assistant.LiveMetrics = true, want false")
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"FEZA_PROFILE": "oops"},
		{"FEZA_HTTP_READ_TIMEOUT": "NaN"},
		{"FEZA_STORE_MAX_OPEN_CONNS": "oops"},
		{"FEZA_ARCHIVE_BATCH_SIZE": "oops"},
		{"FEZA_AI_TEMPERATURE": "bad"},
		{"FEZA_AI_TEMPERATURE": "1.5"},
		{"FEZA_AI_NARRATION_TEMPERATURE": "-0.1"},
		{"FEZA_AI_MAX_TOKENS": "0"},
		{"FEZA_AI_MAX_ATTEMPTS": "0"},
		{"FEZA_AI_DEFAULT_LIMIT": "-1"},
		{"FEZA_AUTH_REQUIRED": "not-bool"},
		{"FEZA_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("feza-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
