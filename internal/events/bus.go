/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventTaskCreated   EventType = "task.created"
	EventTaskUpdated   EventType = "task.updated"
	EventTaskDeleted   EventType = "task.deleted"
	EventTaskEstimated EventType = "task.estimated"
	EventTaskScheduled EventType = "task.scheduled"

	// Settings changes also invalidate cached calendar snapshots.
	EventWorkingHoursUpdated EventType = "settings.working_hours_updated"
	EventHolidaysChanged     EventType = "settings.holidays_changed"

	EventUserRegistered EventType = "user.registered"
	EventAuthLogin      EventType = "auth.login"
	EventAuthLogout     EventType = "auth.logout"

	EventAPIKeyCreate EventType = "apikey.create"
	EventAPIKeyRevoke EventType = "apikey.revoke"
)

// AllEventTypes lists every event type published by the service.
var AllEventTypes = []EventType{
	EventTaskCreated, EventTaskUpdated, EventTaskDeleted, EventTaskEstimated, EventTaskScheduled,
	EventWorkingHoursUpdated, EventHolidaysChanged,
	EventUserRegistered, EventAuthLogin, EventAuthLogout,
	EventAPIKeyCreate, EventAPIKeyRevoke,
}

// RemoteKey marks payloads relayed from another instance.
const RemoteKey = "_remote"

// Payload generic event payload.
type Payload map[string]any

// IsRemote reports whether the payload originated on another instance.
func (p Payload) IsRemote() bool {
	remote, _ := p[RemoteKey].(bool)
	return remote
}

// String returns the string value stored under key, or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Publisher is implemented by every bus flavour.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events
// rather than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
