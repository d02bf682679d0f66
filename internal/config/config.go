/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/worktime/internal/worktime"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	JWTTTL        time.Duration
	MetricsBind   string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis backs the settings cache and leader election.
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Multi-instance configuration
	LeaderElectionEnabled bool
	InstanceID            string
	NATSURL               string // empty keeps events in-process
	RedisEventsEnabled    bool   // fan events out over Redis pub/sub when NATS is not set

	SessionMaxAge time.Duration

	// Working-time defaults
	PublicHolidays      string // optional preset, e.g. "us"
	DefaultWorkStart    string
	DefaultWorkEnd      string
	SeedManagerPassword string

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"WORKTIME_ENV", "WT_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"WORKTIME_HTTP_BIND", "WT_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"WORKTIME_HTTP_PORT", "WT_HTTP_PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"WORKTIME_DB_BACKEND", "WT_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"WORKTIME_DB_DSN", "WT_DB_DSN"}, ""),
		JWTSigningKey: getEnvAny([]string{"WORKTIME_JWT_SIGNING_KEY", "WT_JWT_SIGNING_KEY"}, ""),
		JWTTTL:        time.Duration(getEnvIntAny([]string{"WORKTIME_JWT_TTL_MINUTES", "WT_JWT_TTL_MINUTES"}, 1440)) * time.Minute,
		MetricsBind:   getEnvAny([]string{"WORKTIME_METRICS_BIND", "WT_METRICS_BIND"}, "127.0.0.1:9000"),

		TracingEnabled:    getEnvBoolAny([]string{"WORKTIME_TRACING_ENABLED", "WT_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"WORKTIME_OTLP_ENDPOINT", "WT_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"WORKTIME_TRACING_SAMPLE_RATE", "WT_TRACING_SAMPLE_RATE"}, 1.0),

		CacheEnabled:  getEnvBoolAny([]string{"WORKTIME_CACHE_ENABLED", "WT_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"WORKTIME_REDIS_ADDR", "WT_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"WORKTIME_REDIS_PASSWORD", "WT_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"WORKTIME_REDIS_DB", "WT_REDIS_DB"}, 0),

		LeaderElectionEnabled: getEnvBoolAny([]string{"WORKTIME_LEADER_ELECTION_ENABLED", "WT_LEADER_ELECTION_ENABLED"}, false),
		InstanceID:            getEnvAny([]string{"WORKTIME_INSTANCE_ID", "WT_INSTANCE_ID"}, ""),
		NATSURL:               getEnvAny([]string{"WORKTIME_NATS_URL", "WT_NATS_URL"}, ""),
		RedisEventsEnabled:    getEnvBoolAny([]string{"WORKTIME_REDIS_EVENTS", "WT_REDIS_EVENTS"}, false),

		SessionMaxAge: time.Duration(getEnvIntAny([]string{"WORKTIME_SESSION_MAX_AGE_HOURS", "WT_SESSION_MAX_AGE_HOURS"}, 24)) * time.Hour,

		PublicHolidays:      getEnvAny([]string{"WORKTIME_PUBLIC_HOLIDAYS", "WT_PUBLIC_HOLIDAYS"}, ""),
		DefaultWorkStart:    getEnvAny([]string{"WORKTIME_DEFAULT_WORK_START", "WT_DEFAULT_WORK_START"}, "08:00"),
		DefaultWorkEnd:      getEnvAny([]string{"WORKTIME_DEFAULT_WORK_END", "WT_DEFAULT_WORK_END"}, "16:00"),
		SeedManagerPassword: getEnvAny([]string{"WORKTIME_SEED_MANAGER_PASSWORD", "WT_SEED_MANAGER_PASSWORD"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("WORKTIME_DB_DSN or WT_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("WORKTIME_JWT_SIGNING_KEY or WT_JWT_SIGNING_KEY must be provided")
	}

	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("WORKTIME_JWT_TTL_MINUTES must be positive")
	}

	if _, err := cfg.DefaultWindow(); err != nil {
		return nil, fmt.Errorf("default working hours: %w", err)
	}

	if _, err := worktime.PublicHolidays(cfg.PublicHolidays); err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if len(cfg.JWTSigningKey) < 32 {
			return nil, fmt.Errorf("WORKTIME_JWT_SIGNING_KEY must be at least 32 characters in production")
		}
		if cfg.SeedManagerPassword == "" {
			return nil, fmt.Errorf("WORKTIME_SEED_MANAGER_PASSWORD must be set in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// DefaultWindow returns the working-hours window used when none is stored.
func (c *Config) DefaultWindow() (*worktime.Window, error) {
	return worktime.NewWindow(c.DefaultWorkStart, c.DefaultWorkEnd)
}

// HTTPAddr returns the listen address for the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"JWT_SECRET":              "use WORKTIME_JWT_SIGNING_KEY (or WT_JWT_SIGNING_KEY)",
		"JWT_EXPIRATION":          "use WORKTIME_JWT_TTL_MINUTES",
		"DATABASE_URL":            "use WORKTIME_DB_DSN (or WT_DB_DSN)",
		"LEADER_ELECTION_ENABLED": "use WORKTIME_LEADER_ELECTION_ENABLED",
		"TRACING_ENABLED":         "use WORKTIME_TRACING_ENABLED (or WT_TRACING_ENABLED)",
		"OTLP_ENDPOINT":           "use WORKTIME_OTLP_ENDPOINT (or WT_OTLP_ENDPOINT)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
