/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/events"
)

type recordingConn struct {
	subjects []string
	data     [][]byte
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.subjects = append(c.subjects, subject)
	c.data = append(c.data, data)
	return c.err
}

func receive(t *testing.T, sub events.Subscriber) events.Payload {
	t.Helper()
	select {
	case p := <-sub:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestNATSBusPublishesLocallyAndRemotely(t *testing.T) {
	local := events.NewBus()
	conn := &recordingConn{}
	nb := newBus(local, conn, "node-a", zerolog.Nop())

	sub := local.Subscribe(events.EventTaskScheduled)
	nb.Publish(events.EventTaskScheduled, events.Payload{"task_id": "t1"})

	if p := receive(t, sub); p.IsRemote() || p.String("task_id") != "t1" {
		t.Fatalf("unexpected local payload %v", p)
	}
	if len(conn.subjects) != 1 || conn.subjects[0] != "worktime.events.task.scheduled" {
		t.Fatalf("unexpected subjects %v", conn.subjects)
	}
	if !strings.Contains(string(conn.data[0]), `"node_id":"node-a"`) {
		t.Fatalf("envelope missing node id: %s", conn.data[0])
	}
}

func TestNATSBusPublishFailureStillDeliversLocally(t *testing.T) {
	local := events.NewBus()
	nb := newBus(local, &recordingConn{err: errors.New("down")}, "node-a", zerolog.Nop())
	sub := local.Subscribe(events.EventHolidaysChanged)

	nb.Publish(events.EventHolidaysChanged, events.Payload{})
	receive(t, sub)
}

func TestNATSBusRelaysRemoteAndSkipsEcho(t *testing.T) {
	localA, localB := events.NewBus(), events.NewBus()
	connA := &recordingConn{}
	a := newBus(localA, connA, "node-a", zerolog.Nop())
	b := newBus(localB, &recordingConn{}, "node-b", zerolog.Nop())

	subA := localA.Subscribe(events.EventWorkingHoursUpdated)
	subB := localB.Subscribe(events.EventWorkingHoursUpdated)

	a.Publish(events.EventWorkingHoursUpdated, events.Payload{"start": "09:00"})
	receive(t, subA)

	// node-a sees its own message come back from the server: ignored.
	a.relay(connA.data[0])
	select {
	case p := <-subA:
		t.Fatalf("echo should be suppressed, got %v", p)
	default:
	}

	b.relay(connA.data[0])
	p := receive(t, subB)
	if !p.IsRemote() || p.String("start") != "09:00" {
		t.Fatalf("unexpected relayed payload %v", p)
	}
}

func TestUnmarshalMessageRejectsGarbage(t *testing.T) {
	if _, err := unmarshalMessage([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
	if _, err := unmarshalMessage([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestGenerateNodeIDIsUnique(t *testing.T) {
	if GenerateNodeID() == GenerateNodeID() {
		t.Fatal("expected distinct node ids")
	}
}
