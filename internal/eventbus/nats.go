/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/events"
)

// SubjectPrefix prefixes every event subject, e.g. worktime.events.task.scheduled.
const SubjectPrefix = "worktime.events."

// publisher is the subset of *nats.Conn the bus needs to send.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSBus mirrors local publishes to NATS and relays events from other
// instances into the local bus, so subscribers such as the settings cache
// see changes made anywhere in the cluster.
type NATSBus struct {
	local  *events.Bus
	logger zerolog.Logger
	nodeID string

	conn publisher
	nc   *nats.Conn
	sub  *nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "worktime",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus connects to NATS and starts relaying remote events into local.
func NewNATSBus(cfg NATSConfig, local *events.Bus, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	if nodeID == "" {
		nodeID = GenerateNodeID()
	}
	logger = logger.With().Str("component", "eventbus").Logger()

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	nb := newBus(local, nc, nodeID, logger)
	nb.nc = nc

	sub, err := nc.Subscribe(SubjectPrefix+">", func(msg *nats.Msg) {
		nb.relay(msg.Data)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s>: %w", SubjectPrefix, err)
	}
	nb.sub = sub

	logger.Info().Str("url", cfg.URL).Str("node_id", nodeID).Msg("NATS event bus connected")
	return nb, nil
}

func newBus(local *events.Bus, conn publisher, nodeID string, logger zerolog.Logger) *NATSBus {
	return &NATSBus{local: local, conn: conn, nodeID: nodeID, logger: logger}
}

// Publish delivers locally first, then forwards to the cluster.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event")
		return
	}
	if err := nb.conn.Publish(SubjectPrefix+string(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// relay hands a remote message to local subscribers, skipping our own echoes.
func (nb *NATSBus) relay(data []byte) {
	relayInto(nb.local, nb.nodeID, data, nb.logger)
}

// NodeID returns the identifier used for echo suppression.
func (nb *NATSBus) NodeID() string {
	return nb.nodeID
}

// Close drains the subscription and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.nc == nil {
		return nil
	}
	return nb.nc.Drain()
}

// GenerateNodeID returns hostname-uuid, unique per process.
func GenerateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worktime"
	}
	return strings.ToLower(host) + "-" + uuid.NewString()[:8]
}
