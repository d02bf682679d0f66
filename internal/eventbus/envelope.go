/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/events"
)

// message is the wire envelope shared by the NATS and Redis transports.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	if msg.EventType == "" {
		return nil, fmt.Errorf("unmarshal event message: missing event type")
	}
	return &msg, nil
}

// relayInto publishes a remote envelope on local, marked with RemoteKey.
// Envelopes sent by nodeID itself are dropped.
func relayInto(local *events.Bus, nodeID string, data []byte, logger zerolog.Logger) {
	msg, err := unmarshalMessage(data)
	if err != nil {
		logger.Error().Err(err).Msg("failed to unmarshal remote event")
		return
	}
	if msg.NodeID == nodeID {
		return
	}

	payload := events.Payload{}
	for k, v := range msg.Payload {
		payload[k] = v
	}
	payload[events.RemoteKey] = true
	local.Publish(msg.EventType, payload)

	logger.Debug().
		Str("event_type", string(msg.EventType)).
		Str("source_node", msg.NodeID).
		Msg("relayed remote event")
}
