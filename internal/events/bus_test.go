/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"testing"
	"time"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTaskScheduled)
	other := bus.Subscribe(EventTaskCreated)

	bus.Publish(EventTaskScheduled, Payload{"task_id": "t1"})

	select {
	case p := <-sub:
		if p.String("task_id") != "t1" {
			t.Fatalf("unexpected payload %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case p := <-other:
		t.Fatalf("unexpected delivery to other subscriber: %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventHolidaysChanged)
	for i := 0; i < 20; i++ {
		bus.Publish(EventHolidaysChanged, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected full buffer of %d, got %d", cap(sub), len(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventAuthLogin)
	bus.Unsubscribe(EventAuthLogin, sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(EventAuthLogin, Payload{})
}

func TestPayloadIsRemote(t *testing.T) {
	if (Payload{}).IsRemote() {
		t.Fatal("empty payload is local")
	}
	if !(Payload{RemoteKey: true}).IsRemote() {
		t.Fatal("expected remote payload")
	}
}
