package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WORKTIME_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("WORKTIME_JWT_SIGNING_KEY", "supersecret")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKTIME_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("expected default jwt ttl of 24h, got %s", cfg.JWTTTL)
	}
	w, err := cfg.DefaultWindow()
	if err != nil {
		t.Fatalf("default window: %v", err)
	}
	if w.String() != "08:00-16:00" {
		t.Fatalf("unexpected default window %s", w)
	}
}

func TestLoadAcceptsShortAliases(t *testing.T) {
	t.Setenv("WT_DB_DSN", "file::memory:")
	t.Setenv("WT_DB_BACKEND", "sqlite")
	t.Setenv("WT_JWT_SIGNING_KEY", "alias-secret")
	t.Setenv("WT_HTTP_PORT", "9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("expected sqlite backend, got %q", cfg.DBBackend)
	}
	if cfg.HTTPAddr() != "0.0.0.0:9191" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr())
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) != 2 {
		t.Fatalf("expected 2 legacy env warnings, got %v", cfg.LegacyEnvWarnings)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend", "WORKTIME_DB_BACKEND", "oracle"},
		{"inverted window", "WORKTIME_DEFAULT_WORK_START", "18:00"},
		{"malformed window", "WORKTIME_DEFAULT_WORK_END", "5pm"},
		{"holiday preset", "WORKTIME_PUBLIC_HOLIDAYS", "atlantis"},
		{"ttl", "WORKTIME_JWT_TTL_MINUTES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadProductionRequiresStrongSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKTIME_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with a short signing key")
	}

	t.Setenv("WORKTIME_JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without a seed manager password")
	}

	t.Setenv("WORKTIME_SEED_MANAGER_PASSWORD", "changeit")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load to succeed: %v", err)
	}
}
