package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johnwards/flyoutsync/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Addr       string // FLYOUT_ADDR, default ":8080"
	DBPath     string // FLYOUT_DB, default "flyoutsync.db"
	AdminToken string // FLYOUT_ADMIN_TOKEN, optional

	// Initial partner settings, written on first start only.
	BaseURL    string // FLYOUT_BASE_URL
	APIKey     string // FLYOUT_API_KEY
	EnableSync bool   // FLYOUT_ENABLE_SYNC

	LogLevel  string // FLYOUT_LOG_LEVEL, default "info"
	LogFormat string // FLYOUT_LOG_FORMAT, "text" or "json"
	LogFile   string // FLYOUT_LOG_FILE, optional rotating log file

	StatusMapPath string // FLYOUT_STATUS_MAP, optional YAML file

	HTTPTimeout    time.Duration // FLYOUT_HTTP_TIMEOUT, default 30s
	HTTPMaxRetries int           // FLYOUT_HTTP_MAX_RETRIES, default 3
	HTTPRetryDelay time.Duration // FLYOUT_HTTP_RETRY_DELAY, default 2s
	RateLimit      float64       // FLYOUT_RATE_LIMIT, requests per second, 0 disables

	RetryDelay          time.Duration // FLYOUT_RETRY_DELAY, default 5m
	RetryMaxDelay       time.Duration // FLYOUT_RETRY_MAX_DELAY, default 1h
	MaxScheduledRetries int           // FLYOUT_MAX_SCHEDULED_RETRIES, default 5
	WorkerPoll          time.Duration // FLYOUT_WORKER_POLL, default 1s
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed numeric or duration values are reported rather than ignored.
func Load() (Config, error) {
	cfg := Config{
		Addr:          envOr("FLYOUT_ADDR", ":8080"),
		DBPath:        envOr("FLYOUT_DB", "flyoutsync.db"),
		AdminToken:    os.Getenv("FLYOUT_ADMIN_TOKEN"),
		BaseURL:       os.Getenv("FLYOUT_BASE_URL"),
		APIKey:        os.Getenv("FLYOUT_API_KEY"),
		LogLevel:      envOr("FLYOUT_LOG_LEVEL", "info"),
		LogFormat:     envOr("FLYOUT_LOG_FORMAT", "text"),
		LogFile:       os.Getenv("FLYOUT_LOG_FILE"),
		StatusMapPath: os.Getenv("FLYOUT_STATUS_MAP"),
	}

	var errs []error
	cfg.EnableSync = envBool("FLYOUT_ENABLE_SYNC", false, &errs)
	cfg.HTTPTimeout = envDuration("FLYOUT_HTTP_TIMEOUT", 30*time.Second, &errs)
	cfg.HTTPMaxRetries = envInt("FLYOUT_HTTP_MAX_RETRIES", 3, &errs)
	cfg.HTTPRetryDelay = envDuration("FLYOUT_HTTP_RETRY_DELAY", 2*time.Second, &errs)
	cfg.RateLimit = envFloat("FLYOUT_RATE_LIMIT", 5, &errs)
	cfg.RetryDelay = envDuration("FLYOUT_RETRY_DELAY", 5*time.Minute, &errs)
	cfg.RetryMaxDelay = envDuration("FLYOUT_RETRY_MAX_DELAY", time.Hour, &errs)
	cfg.MaxScheduledRetries = envInt("FLYOUT_MAX_SCHEDULED_RETRIES", 5, &errs)
	cfg.WorkerPoll = envDuration("FLYOUT_WORKER_POLL", time.Second, &errs)

	if len(errs) > 0 {
		return cfg, errs[0]
	}
	return cfg, nil
}

// LoadStatusMaps returns the built-in status maps, overridden per entity type
// by the YAML file at path when path is non-empty. The result is validated.
func LoadStatusMaps(path string) (domain.StatusMaps, error) {
	maps := domain.DefaultStatusMaps()
	if path == "" {
		return maps, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("read status map %s: %w", path, err)
	}

	var override domain.StatusMaps
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse status map %s: %w", path, err)
	}
	for t, sm := range override {
		if _, err := domain.ParseEntityType(string(t)); err != nil {
			return nil, fmt.Errorf("status map %s: %w", path, err)
		}
		maps[t] = sm
	}

	if err := maps.Validate(); err != nil {
		return nil, err
	}
	return maps, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func envInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func envBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}
