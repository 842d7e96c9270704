package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.JWTSecret != "your-secret-key" {
		t.Errorf("expected fallback secret, got %q", cfg.JWTSecret)
	}
	if cfg.Port != "5000" {
		t.Errorf("expected default port 5000, got %q", cfg.Port)
	}
	if cfg.TokenTTLHours != 24 {
		t.Errorf("expected default token ttl 24h, got %d", cfg.TokenTTLHours)
	}
	if cfg.LogRetentionDays != 30 {
		t.Errorf("expected default retention 30 days, got %d", cfg.LogRetentionDays)
	}
	if !cfg.FailOpenRouting {
		t.Error("expected fail-open routing by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("FAIL_OPEN", "false")
	t.Setenv("LOG_RETENTION_DAYS", "7")

	cfg := Load()

	if cfg.JWTSecret != "s3cret" {
		t.Errorf("JWT_SECRET override not applied: %q", cfg.JWTSecret)
	}
	if cfg.RedisPort != 6380 {
		t.Errorf("REDIS_PORT override not applied: %d", cfg.RedisPort)
	}
	if cfg.FailOpenRouting {
		t.Error("FAIL_OPEN=false not applied")
	}
	if cfg.LogRetentionDays != 7 {
		t.Errorf("LOG_RETENTION_DAYS override not applied: %d", cfg.LogRetentionDays)
	}
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-number")
	cfg := Load()
	if cfg.RedisPort != 6379 {
		t.Errorf("expected fallback on invalid int, got %d", cfg.RedisPort)
	}
}
