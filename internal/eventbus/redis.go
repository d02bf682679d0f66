/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/events"
)

// ChannelPrefix prefixes every Redis pub/sub channel.
const ChannelPrefix = "worktime:events:"

// RedisBus is the Redis pub/sub counterpart of NATSBus, for deployments that
// already run Redis for the cache and leader election.
type RedisBus struct {
	local  *events.Bus
	client *redis.Client
	pubsub *redis.PubSub
	nodeID string
	logger zerolog.Logger

	publishTimeout time.Duration
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize       int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PublishTimeout time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           "localhost:6379",
		PoolSize:       10,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// NewRedisBus connects to Redis and starts relaying remote events into local.
// Unlike the cache, the bus does not degrade silently: an unreachable Redis is
// an error and the caller decides whether to stay in-process.
func NewRedisBus(cfg RedisConfig, local *events.Bus, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	if nodeID == "" {
		nodeID = GenerateNodeID()
	}
	logger = logger.With().Str("component", "eventbus").Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := client.PSubscribe(ctx, ChannelPrefix+"*")
	if _, err := pubsub.Receive(pingCtx); err != nil {
		cancel()
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("psubscribe %s*: %w", ChannelPrefix, err)
	}

	rb := &RedisBus{
		local:          local,
		client:         client,
		pubsub:         pubsub,
		nodeID:         nodeID,
		logger:         logger,
		publishTimeout: cfg.PublishTimeout,
		cancel:         cancel,
	}
	rb.wg.Add(1)
	go rb.receive(ctx)

	logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("Redis event bus connected")
	return rb, nil
}

func (rb *RedisBus) receive(ctx context.Context) {
	defer rb.wg.Done()
	ch := rb.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Warn().Msg("Redis pub/sub channel closed")
				return
			}
			relayInto(rb.local, rb.nodeID, []byte(msg.Payload), rb.logger)
		}
	}
}

// Publish delivers locally first, then forwards to the other instances.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rb.publishTimeout)
	defer cancel()
	if err := rb.client.Publish(ctx, ChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
	}
}

// NodeID returns the identifier used for echo suppression.
func (rb *RedisBus) NodeID() string {
	return rb.nodeID
}

// Close stops the receiver and closes the connection.
func (rb *RedisBus) Close() error {
	rb.cancel()
	rb.pubsub.Close()
	rb.wg.Wait()
	return rb.client.Close()
}
