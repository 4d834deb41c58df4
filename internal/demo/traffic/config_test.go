package traffic

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.BatchSize <= 0 || cfg.Concurrency <= 0 {
		t.Fatalf("BatchSize = %d Concurrency = %d", cfg.BatchSize, cfg.Concurrency)
	}
	if cfg.Interval <= 0 {
		t.Fatalf("Interval = %s", cfg.Interval)
	}
	if !cfg.Adversarial {
		t.Fatal("Adversarial = false, want true")
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"FEZA_DEMO_API_URL":          "http://demo.local:18080/",
		"FEZA_DEMO_API_KEY":          " abc ",
		"FEZA_DEMO_DRIVER_ID":        "seed-a",
		"FEZA_DEMO_BATCH_SIZE":       "9",
		"FEZA_DEMO_CONCURRENCY":      "3",
		"FEZA_DEMO_INTERVAL":         "1500ms",
		"FEZA_DEMO_HTTP_TIMEOUT":     "30s",
		"FEZA_DEMO_USER_CARDINALITY": "333",
		"FEZA_DEMO_ADVERSARIAL":      "false",
		"FEZA_DEMO_SEED":             "12345",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.APIBaseURL != "http://demo.local:18080" {
		t.Fatalf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.APIKey != "abc" || cfg.DriverID != "seed-a" {
		t.Fatalf("APIKey = %q DriverID = %q", cfg.APIKey, cfg.DriverID)
	}
	if cfg.BatchSize != 9 || cfg.Concurrency != 3 {
		t.Fatalf("BatchSize = %d Concurrency = %d", cfg.BatchSize, cfg.Concurrency)
	}
	if cfg.Interval != 1500*time.Millisecond || cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("Interval = %s HTTPTimeout = %s", cfg.Interval, cfg.HTTPTimeout)
	}
	if cfg.UserCardinality != 333 || cfg.Seed != 12345 {
		t.Fatalf("UserCardinality = %d Seed = %d", cfg.UserCardinality, cfg.Seed)
	}
	if cfg.Adversarial {
		t.Fatal("Adversarial = true, want false")
	}
}

func TestLoadConfigFromEnvRejectsInvalidBatchSize(t *testing.T) {
	_, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"FEZA_DEMO_BATCH_SIZE": "0",
	}))
	if err == nil || !strings.Contains(err.Error(), "FEZA_DEMO_BATCH_SIZE") {
		t.Fatalf("error = %v, want batch size validation error", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}
