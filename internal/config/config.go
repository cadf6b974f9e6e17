// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Sources.
	RPCURL          string // JSON-RPC endpoint of the chain hosting the registry.
	RegistryAddress string // Hex address of the reputation registry contract.
	BountyURL       string // GET endpoint returning the bounty list.
	BountyTimeout   time.Duration

	// Chain reads.
	ChainCallTimeout    time.Duration
	MaxEnumeratedAgents int
	BackfillConcurrency int

	// Profiles.
	CacheTTL       time.Duration
	RecentFeedback int

	// Admin refresh endpoint. Empty disables POST /v1/refresh.
	AdminToken string

	// Rate limiting of live reputation reads.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
	RedisURL         string // Empty = in-memory limiter.

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed values are errors, not silent fallbacks; all of them are reported together.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		RPCURL:          envStr("HYOKA_RPC_URL", ""),
		RegistryAddress: envStr("HYOKA_REGISTRY_ADDRESS", ""),
		BountyURL:       envStr("HYOKA_BOUNTY_URL", ""),
		AdminToken:      envStr("HYOKA_ADMIN_TOKEN", ""),
		RedisURL:        envStr("REDIS_URL", ""),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:     envStr("OTEL_SERVICE_NAME", "hyoka"),
		LogLevel:        envStr("HYOKA_LOG_LEVEL", "info"),
	}

	var err error
	cfg.Port, err = envInt("HYOKA_PORT", 8080)
	collect(err)
	cfg.ReadTimeout, err = envDuration("HYOKA_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("HYOKA_WRITE_TIMEOUT", 60*time.Second)
	collect(err)
	cfg.BountyTimeout, err = envDuration("HYOKA_BOUNTY_TIMEOUT", 15*time.Second)
	collect(err)
	cfg.ChainCallTimeout, err = envDuration("HYOKA_CHAIN_CALL_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.MaxEnumeratedAgents, err = envInt("HYOKA_MAX_ENUMERATED_AGENTS", 50)
	collect(err)
	cfg.BackfillConcurrency, err = envInt("HYOKA_BACKFILL_CONCURRENCY", 16)
	collect(err)
	cfg.CacheTTL, err = envDuration("HYOKA_CACHE_TTL", 60*time.Second)
	collect(err)
	cfg.RecentFeedback, err = envInt("HYOKA_RECENT_FEEDBACK", 10)
	collect(err)
	cfg.RateLimitEnabled, err = envBool("HYOKA_RATE_LIMIT_ENABLED", true)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("HYOKA_RATE_LIMIT_RPS", 5)
	collect(err)
	cfg.RateLimitBurst, err = envInt("HYOKA_RATE_LIMIT_BURST", 10)
	collect(err)
	cfg.OTELInsecure, err = envBool("HYOKA_OTEL_INSECURE", false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and in range.
func (c Config) Validate() error {
	var errs []error
	if c.RPCURL == "" {
		errs = append(errs, errors.New("HYOKA_RPC_URL is required"))
	}
	if c.RegistryAddress == "" {
		errs = append(errs, errors.New("HYOKA_REGISTRY_ADDRESS is required"))
	} else if !common.IsHexAddress(c.RegistryAddress) {
		errs = append(errs, fmt.Errorf("HYOKA_REGISTRY_ADDRESS=%q is not a hex address", c.RegistryAddress))
	}
	if c.BountyURL == "" {
		errs = append(errs, errors.New("HYOKA_BOUNTY_URL is required"))
	} else if u, err := url.Parse(c.BountyURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("HYOKA_BOUNTY_URL=%q is not an http(s) URL", c.BountyURL))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("HYOKA_PORT=%d is out of range", c.Port))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("HYOKA_CACHE_TTL must be positive"))
	}
	if c.ChainCallTimeout <= 0 {
		errs = append(errs, errors.New("HYOKA_CHAIN_CALL_TIMEOUT must be positive"))
	}
	if c.BountyTimeout <= 0 {
		errs = append(errs, errors.New("HYOKA_BOUNTY_TIMEOUT must be positive"))
	}
	if c.MaxEnumeratedAgents < 0 {
		errs = append(errs, errors.New("HYOKA_MAX_ENUMERATED_AGENTS must not be negative"))
	}
	if c.RecentFeedback <= 0 {
		errs = append(errs, errors.New("HYOKA_RECENT_FEEDBACK must be positive"))
	}
	if c.BackfillConcurrency <= 0 {
		errs = append(errs, errors.New("HYOKA_BACKFILL_CONCURRENCY must be positive"))
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, errors.New("HYOKA_RATE_LIMIT_RPS and HYOKA_RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLogLevel maps HYOKA_LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("HYOKA_LOG_LEVEL=%q is not one of debug, info, warn, error", s)
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
