/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/telemetry"
)

const (
	defaultElectionKey     = "worktime:leader:maintenance"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
)

// Leader reports whether this instance should run cluster-wide jobs.
type Leader interface {
	IsLeader() bool
}

// Always is a Leader for single-instance deployments.
type Always struct{}

// IsLeader always returns true.
func (Always) IsLeader() bool { return true }

// Election manages distributed leader election using a Redis lease.
type Election struct {
	client     *redis.Client
	logger     zerolog.Logger
	config     ElectionConfig
	instanceID string

	isLeader   atomic.Bool
	cancelFunc context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
	leaderCh   chan bool
}

// ElectionConfig configures leader election behavior.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey is the Redis key holding the current leader's instance id.
	ElectionKey string

	// LeaseDuration is how long the lease lives without renewal.
	LeaseDuration time.Duration

	// RenewalInterval is how often every instance campaigns; the leader
	// renews, followers try to acquire.
	RenewalInterval time.Duration

	InstanceID string
}

// DefaultConfig returns default election configuration.
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
		InstanceID:      uuid.NewString(),
	}
}

// NewElection creates a new leader election manager.
func NewElection(config ElectionConfig, logger zerolog.Logger) (*Election, error) {
	if config.ElectionKey == "" {
		config.ElectionKey = defaultElectionKey
	}
	if config.LeaseDuration == 0 {
		config.LeaseDuration = defaultLeaseDuration
	}
	if config.RenewalInterval == 0 {
		config.RenewalInterval = defaultRenewalInterval
	}
	if config.RenewalInterval >= config.LeaseDuration {
		return nil, fmt.Errorf("renewal interval %s must be shorter than lease %s", config.RenewalInterval, config.LeaseDuration)
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().
		Str("redis_addr", config.RedisAddr).
		Str("instance_id", config.InstanceID).
		Msg("connected to Redis for leader election")

	return &Election{
		client:     client,
		logger:     logger.With().Str("component", "leader_election").Logger(),
		config:     config,
		instanceID: config.InstanceID,
		done:       make(chan struct{}),
		leaderCh:   make(chan bool, 1),
	}, nil
}

// Start begins campaigning in the background.
func (e *Election) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info().
		Str("instance_id", e.instanceID).
		Dur("lease_duration", e.config.LeaseDuration).
		Msg("starting leader election")

	go e.campaignLoop(ctx)
	return nil
}

// Stop stops campaigning and releases the lease if held.
func (e *Election) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		e.logger.Info().Msg("stopping leader election")
		if e.cancelFunc != nil {
			e.cancelFunc()
			<-e.done
		}

		if e.isLeader.Load() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if rerr := e.releaseLock(ctx); rerr != nil {
				e.logger.Error().Err(rerr).Msg("failed to release leadership lock")
			}
			e.updateLeadershipStatus(false)
		}
		err = e.client.Close()
	})
	return err
}

// IsLeader returns whether this instance currently holds the lease.
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// LeaderCh returns a channel that receives leadership status changes.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// GetLeader returns the current leader instance ID, or "" when none.
func (e *Election) GetLeader(ctx context.Context) (string, error) {
	leaderID, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return leaderID, nil
}

func (e *Election) campaignLoop(ctx context.Context) {
	defer close(e.done)

	e.attemptLeadership(ctx)

	ticker := time.NewTicker(e.config.RenewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.attemptLeadership(ctx)
		}
	}
}

func (e *Election) attemptLeadership(ctx context.Context) {
	acquired, err := e.acquireLock(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error().Err(err).Msg("failed to acquire leadership lock")
		}
		e.updateLeadershipStatus(false)
		return
	}
	e.updateLeadershipStatus(acquired)
}

// renewScript extends the lease only when we still own it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (e *Election) acquireLock(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.instanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.instanceID, e.config.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	return renewed == 1, nil
}

func (e *Election) releaseLock(ctx context.Context) error {
	if err := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.instanceID).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	e.logger.Info().Msg("released leadership lock")
	return nil
}

func (e *Election) updateLeadershipStatus(isLeader bool) {
	if e.isLeader.Swap(isLeader) == isLeader {
		return
	}

	if isLeader {
		e.logger.Info().Str("instance_id", e.instanceID).Msg("acquired leadership")
		telemetry.LeaderStatus.Set(1)
	} else {
		e.logger.Warn().Str("instance_id", e.instanceID).Msg("lost leadership")
		telemetry.LeaderStatus.Set(0)
	}

	select {
	case e.leaderCh <- isLeader:
	default:
	}
}

// RunWhenLeader calls fn every interval while leader reports true, until
// ctx is cancelled. Errors are logged and do not stop the loop.
func RunWhenLeader(ctx context.Context, leader Leader, interval time.Duration, logger zerolog.Logger, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !leader.IsLeader() {
				continue
			}
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("job", name).Msg("leader job failed")
			}
		}
	}
}
