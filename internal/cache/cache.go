/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-backed cache for the calendar snapshot and
// other read-mostly lookups. Every method degrades to a miss when Redis is
// unavailable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultCalendarTTL  = 10 * time.Minute
	DefaultEngineersTTL = 5 * time.Minute
)

// Key prefixes for Redis cache
const (
	keyPrefix    = "worktime:cache:"
	KeyCalendar  = keyPrefix + "calendar"
	KeyEngineers = keyPrefix + "engineers"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CalendarTTL  time.Duration
	EngineersTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		CalendarTTL:    DefaultCalendarTTL,
		EngineersTTL:   DefaultEngineersTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// Disabled returns a cache that never stores anything. Callers fall back to
// their own source of truth.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		c := Disabled(logger)
		c.config = cfg
		return c, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Calendar snapshot caching

// CachedMonthDay is a recurring holiday entry.
type CachedMonthDay struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// CachedCalendar is the serialised working-time configuration: the active
// window plus every holiday date.
type CachedCalendar struct {
	WindowStart string           `json:"window_start,omitempty"` // empty when no window is stored
	WindowEnd   string           `json:"window_end,omitempty"`
	OneTime     []string         `json:"one_time"` // YYYY-MM-DD
	Recurring   []CachedMonthDay `json:"recurring"`
	BuiltAt     time.Time        `json:"built_at"`
}

// GetCalendar retrieves the cached calendar snapshot.
func (c *Cache) GetCalendar(ctx context.Context) (*CachedCalendar, bool) {
	var cal CachedCalendar
	found, err := c.get(ctx, KeyCalendar, &cal)
	if err != nil || !found {
		telemetry.CacheMissesTotal.WithLabelValues("calendar").Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.WithLabelValues("calendar").Inc()
	c.logger.Debug().Int("one_time", len(cal.OneTime)).Int("recurring", len(cal.Recurring)).Msg("calendar cache hit")
	return &cal, true
}

// SetCalendar caches the calendar snapshot.
func (c *Cache) SetCalendar(ctx context.Context, cal *CachedCalendar) error {
	return c.set(ctx, KeyCalendar, cal, c.config.CalendarTTL)
}

// InvalidateCalendar removes the calendar snapshot.
func (c *Cache) InvalidateCalendar(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating calendar cache")
	return c.delete(ctx, KeyCalendar)
}

// CachedUser is the public part of a user record.
type CachedUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GetEngineers retrieves the cached engineer list.
func (c *Cache) GetEngineers(ctx context.Context) ([]CachedUser, bool) {
	var users []CachedUser
	found, err := c.get(ctx, KeyEngineers, &users)
	if err != nil || !found {
		telemetry.CacheMissesTotal.WithLabelValues("engineers").Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.WithLabelValues("engineers").Inc()
	return users, true
}

// SetEngineers caches the engineer list.
func (c *Cache) SetEngineers(ctx context.Context, users []CachedUser) error {
	return c.set(ctx, KeyEngineers, users, c.config.EngineersTTL)
}

// InvalidateEngineers drops the engineer list, e.g. after a registration.
func (c *Cache) InvalidateEngineers(ctx context.Context) error {
	return c.delete(ctx, KeyEngineers)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, keyPrefix+"*")
}
