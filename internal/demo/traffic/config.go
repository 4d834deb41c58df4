package traffic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	APIBaseURL      string
	APIKey          string
	DriverID        string
	BatchSize       int
	Concurrency     int
	Interval        time.Duration
	HTTPTimeout     time.Duration
	UserCardinality int
	Adversarial     bool
	Seed            int64
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:      "http://localhost:8080",
		APIKey:          "",
		DriverID:        "demo-traffic",
		BatchSize:       4,
		Concurrency:     2,
		Interval:        10 * time.Second,
		HTTPTimeout:     2 * time.Minute,
		UserCardinality: 20,
		Adversarial:     true,
		Seed:            time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "FEZA_DEMO_API_URL", &cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEZA_DEMO_API_KEY", &cfg.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEZA_DEMO_DRIVER_ID", &cfg.DriverID); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEZA_DEMO_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEZA_DEMO_CONCURRENCY", &cfg.Concurrency); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEZA_DEMO_INTERVAL", &cfg.Interval); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEZA_DEMO_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEZA_DEMO_USER_CARDINALITY", &cfg.UserCardinality); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FEZA_DEMO_ADVERSARIAL", &cfg.Adversarial); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "FEZA_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("FEZA_DEMO_API_URL is required")
	}
	if strings.TrimSpace(cfg.DriverID) == "" {
		return Config{}, fmt.Errorf("FEZA_DEMO_DRIVER_ID is required")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("FEZA_DEMO_BATCH_SIZE must be > 0")
	}
	if cfg.Concurrency <= 0 {
		return Config{}, fmt.Errorf("FEZA_DEMO_CONCURRENCY must be > 0")
	}
	if cfg.Interval <= 0 {
		return Config{}, fmt.Errorf("FEZA_DEMO_INTERVAL must be > 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("FEZA_DEMO_HTTP_TIMEOUT must be > 0")
	}
	if cfg.UserCardinality <= 0 {
		return Config{}, fmt.Errorf("FEZA_DEMO_USER_CARDINALITY must be > 0")
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.DriverID = strings.TrimSpace(cfg.DriverID)
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
