package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultRPCEndpoint is used when RPC_ENDPOINTS is not set. The public
// mainnet endpoint is heavily rate limited; real sweeps should configure
// one or more premium endpoints.
const DefaultRPCEndpoint = "https://api.mainnet-beta.solana.com"

// Config holds all application configuration loaded from environment variables.
// Every field has a usable default so a bare `txcanon sweep` works against the
// public RPC, just slowly.
type Config struct {
	// RPC endpoint rotation
	RPCEndpoints        []string
	EndpointMinInterval time.Duration

	// Fetch behavior
	MaxRetries     int
	RequestTimeout time.Duration
	RetryBaseDelay time.Duration

	// Sweep behavior
	SweepConcurrency int
	WindowDelay      time.Duration
	ProgressEvery    int

	// Cache
	CachePath string

	// Output sink (empty = log sink only)
	NATSURL string

	// Observability
	LogLevel    string
	MetricsAddr string
}

// Load reads configuration from environment variables and validates it.
// Returns an error describing every invalid field, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error
	var err error

	cfg.RPCEndpoints = splitList(getEnvOrDefault("RPC_ENDPOINTS", DefaultRPCEndpoint))

	cfg.EndpointMinInterval, err = parseDuration("ENDPOINT_MIN_INTERVAL", "600ms")
	if err != nil {
		errs = append(errs, err)
	}

	cfg.MaxRetries, err = parseInt("MAX_RETRIES", 5)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	}

	cfg.RetryBaseDelay, err = parseDuration("RETRY_BASE_DELAY", "1s")
	if err != nil {
		errs = append(errs, err)
	}

	cfg.SweepConcurrency, err = parseInt("SWEEP_CONCURRENCY", 4)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.WindowDelay, err = parseDuration("WINDOW_DELAY", "500ms")
	if err != nil {
		errs = append(errs, err)
	}

	cfg.ProgressEvery, err = parseInt("PROGRESS_EVERY", 10)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.CachePath = getEnvOrDefault("CACHE_PATH", "txcache.db")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration loading failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for CLI initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.RPCEndpoints) == 0 {
		errs = append(errs, fmt.Errorf("RPCEndpoints must contain at least one endpoint"))
	}
	for _, ep := range c.RPCEndpoints {
		if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
			errs = append(errs, fmt.Errorf("endpoint %q must be an http(s) URL", ep))
		}
	}

	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("MaxRetries must be at least 1"))
	}

	if c.SweepConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SweepConcurrency must be at least 1"))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RequestTimeout must be positive"))
	}

	if c.RetryBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("RetryBaseDelay must be positive"))
	}

	if c.EndpointMinInterval < 0 {
		errs = append(errs, fmt.Errorf("EndpointMinInterval cannot be negative"))
	}

	if c.WindowDelay < 0 {
		errs = append(errs, fmt.Errorf("WindowDelay cannot be negative"))
	}

	if c.ProgressEvery < 1 {
		errs = append(errs, fmt.Errorf("ProgressEvery must be at least 1"))
	}

	if c.CachePath == "" {
		errs = append(errs, fmt.Errorf("CachePath is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
