package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("HYOKA_RPC_URL", "http://localhost:8545")
	t.Setenv("HYOKA_REGISTRY_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	t.Setenv("HYOKA_BOUNTY_URL", "https://bounties.example.com/api/bounties")
}

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2.5")
	v, err := envFloat("TEST_FLOAT", 0)
	if err != nil || v != 2.5 {
		t.Fatalf("expected 2.5, got %v (err %v)", v, err)
	}

	t.Setenv("TEST_FLOAT_BAD", "fast")
	if _, err := envFloat("TEST_FLOAT_BAD", 0); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	v, err := envBool("TEST_BOOL", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v {
		t.Fatal("expected false")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if got := err.Error(); got != `TEST_DUR_BAD="five-seconds" is not a valid duration` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.CacheTTL != 60*time.Second {
		t.Fatalf("expected default TTL 60s, got %s", cfg.CacheTTL)
	}
	if cfg.MaxEnumeratedAgents != 50 || cfg.RecentFeedback != 10 || cfg.BackfillConcurrency != 16 {
		t.Fatalf("unexpected chain defaults: %+v", cfg)
	}
	if cfg.BountyTimeout != 15*time.Second || cfg.ChainCallTimeout != 10*time.Second {
		t.Fatalf("unexpected timeout defaults: bounty=%s chain=%s", cfg.BountyTimeout, cfg.ChainCallTimeout)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg)
	}
	if cfg.ServiceName != "hyoka" {
		t.Fatalf("expected service name hyoka, got %q", cfg.ServiceName)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HYOKA_CACHE_TTL", "5m")
	t.Setenv("HYOKA_MAX_ENUMERATED_AGENTS", "200")
	t.Setenv("HYOKA_RATE_LIMIT_ENABLED", "false")
	t.Setenv("HYOKA_RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.MaxEnumeratedAgents != 200 || cfg.RateLimitEnabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFailsWithoutRequired(t *testing.T) {
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail without sources configured")
	}
	for _, key := range []string{"HYOKA_RPC_URL", "HYOKA_REGISTRY_ADDRESS", "HYOKA_BOUNTY_URL"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error should mention %s, got: %s", key, err)
		}
	}
}

func TestLoadFailsOnInvalidPort(t *testing.T) {
	setRequired(t)
	t.Setenv("HYOKA_PORT", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid HYOKA_PORT")
	}
	if got := err.Error(); !strings.Contains(got, "HYOKA_PORT") || !strings.Contains(got, "abc") {
		t.Fatalf("error should mention HYOKA_PORT and value 'abc', got: %s", got)
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	setRequired(t)
	t.Setenv("HYOKA_PORT", "abc")
	t.Setenv("HYOKA_CACHE_TTL", "soon")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !strings.Contains(got, "HYOKA_PORT") || !strings.Contains(got, "HYOKA_CACHE_TTL") {
		t.Fatalf("error should mention both variables, got: %s", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		expect string
	}{
		{"non-hex registry", map[string]string{"HYOKA_REGISTRY_ADDRESS": "0xnothex"}, "HYOKA_REGISTRY_ADDRESS"},
		{"bounty url scheme", map[string]string{"HYOKA_BOUNTY_URL": "ftp://example.com/b"}, "HYOKA_BOUNTY_URL"},
		{"zero ttl", map[string]string{"HYOKA_CACHE_TTL": "0s"}, "HYOKA_CACHE_TTL"},
		{"zero feedback", map[string]string{"HYOKA_RECENT_FEEDBACK": "0"}, "HYOKA_RECENT_FEEDBACK"},
		{"zero rps while enabled", map[string]string{"HYOKA_RATE_LIMIT_RPS": "0"}, "HYOKA_RATE_LIMIT_RPS"},
		{"unknown log level", map[string]string{"HYOKA_LOG_LEVEL": "loud"}, "HYOKA_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.expect) {
				t.Fatalf("error should mention %s, got: %s", tt.expect, err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
