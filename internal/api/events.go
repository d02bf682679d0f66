/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/telemetry"
)

const eventPingInterval = 15 * time.Second

// streamableEvents may be requested on the event stream.
var streamableEvents = map[events.EventType]bool{
	events.EventTaskCreated:         true,
	events.EventTaskUpdated:         true,
	events.EventTaskDeleted:         true,
	events.EventTaskEstimated:       true,
	events.EventTaskScheduled:       true,
	events.EventWorkingHoursUpdated: true,
	events.EventHolidaysChanged:     true,
}

// SetEventStream enables GET /api/v1/events.
func (a *API) SetEventStream(bus *events.Bus) {
	a.stream = bus
}

type streamedEvent struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload,omitempty"`
}

// handleEvents streams task and settings events over a websocket. Callers
// only see tasks they created or are assigned to.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "event_stream_not_available")
		return
	}
	eventTypes, ok := parseEventTypes(r.URL.Query().Get("types"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_event_type")
		return
	}
	caller := actor(r)

	subs := make(map[events.EventType]events.Subscriber, len(eventTypes))
	for _, eventType := range eventTypes {
		subs[eventType] = a.stream.Subscribe(eventType)
	}
	defer func() {
		for eventType, sub := range subs {
			a.stream.Unsubscribe(eventType, sub)
		}
	}()

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	ctx := conn.CloseRead(r.Context())
	merged := fanIn(ctx, subs)

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := writeStreamed(ctx, conn, streamedEvent{Type: "ping"}); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case ev := <-merged:
			if !visibleTo(caller, ev.Payload) {
				continue
			}
			if err := writeStreamed(ctx, conn, streamedEvent{Type: ev.Type, Payload: publicPayload(ev.Payload)}); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

// fanIn merges subscriptions into one channel. Each reader stops when ctx
// ends or its subscription is closed.
func fanIn(ctx context.Context, subs map[events.EventType]events.Subscriber) <-chan streamedEvent {
	merged := make(chan streamedEvent, 16)
	for eventType, sub := range subs {
		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- streamedEvent{Type: eventType, Payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(eventType, sub)
	}
	return merged
}

func writeStreamed(ctx context.Context, conn *ws.Conn, ev streamedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, ws.MessageText, data)
}

// parseEventTypes reads a comma separated list. Empty means every
// streamable type.
func parseEventTypes(raw string) ([]events.EventType, bool) {
	var out []events.EventType
	if strings.TrimSpace(raw) == "" {
		for _, t := range events.AllEventTypes {
			if streamableEvents[t] {
				out = append(out, t)
			}
		}
		return out, true
	}
	seen := make(map[events.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.TrimSpace(part))
		if !streamableEvents[t] {
			return nil, false
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, true
}

func visibleTo(caller auth.Actor, payload events.Payload) bool {
	if payload.String("resource_type") != "task" {
		return true
	}
	if caller.IsManager() {
		return payload.String("created_by_id") == caller.UserID
	}
	return payload.String("assigned_to_id") == caller.UserID
}

// publicPayload drops request metadata before an event leaves the process.
func publicPayload(p events.Payload) events.Payload {
	out := make(events.Payload, len(p))
	for k, v := range p {
		switch k {
		case "ip_address", "user_agent", events.RemoteKey:
			continue
		}
		out[k] = v
	}
	return out
}
