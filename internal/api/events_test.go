package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
)

func (e *testEnv) dialEvents(t *testing.T, token, query string) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/v1/events" + query
	conn, _, err := ws.Dial(ctx, url, &ws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { conn.Close(ws.StatusNormalClosure, "") })
	return conn
}

func readStreamed(t *testing.T, conn *ws.Conn) streamedEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var ev streamedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestEventStreamDeliversOwnTasks(t *testing.T) {
	env := newTestEnv(t)
	pmToken := env.seedManager(t)
	conn := env.dialEvents(t, pmToken, "?types=task.created,settings.working_hours_updated")

	// Another manager's task must not reach this stream.
	env.bus.Publish(events.EventTaskCreated, events.Payload{
		"resource_type": "task",
		"resource_id":   "someone-else",
		"created_by_id": "other-manager",
	})

	status, body := env.do(t, http.MethodPost, "/api/v1/tasks/", pmToken, map[string]string{"title": "Write report"})
	if status != http.StatusCreated {
		t.Fatalf("create task: status %d body %v", status, body)
	}

	ev := readStreamed(t, conn)
	if ev.Type != events.EventTaskCreated {
		t.Fatalf("expected task.created, got %s", ev.Type)
	}
	if ev.Payload.String("resource_id") != body["id"] {
		t.Fatalf("expected task %v, got %v", body["id"], ev.Payload)
	}
	if _, ok := ev.Payload["ip_address"]; ok {
		t.Fatalf("ip_address leaked into stream payload: %v", ev.Payload)
	}

	status, _ = env.do(t, http.MethodPut, "/api/v1/settings/working-hours", pmToken, map[string]string{
		"start_time": "09:00",
		"end_time":   "17:00",
	})
	if status != http.StatusOK {
		t.Fatalf("set working hours: status %d", status)
	}
	ev = readStreamed(t, conn)
	if ev.Type != events.EventWorkingHoursUpdated {
		t.Fatalf("expected working hours event, got %s", ev.Type)
	}
}

func TestEventStreamRejections(t *testing.T) {
	env := newTestEnv(t)
	pmToken := env.seedManager(t)

	status, _ := env.do(t, http.MethodGet, "/api/v1/events", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", status)
	}
	status, body := env.do(t, http.MethodGet, "/api/v1/events?types=auth.login", pmToken, nil)
	if status != http.StatusBadRequest || body["error"] != "unknown_event_type" {
		t.Fatalf("auth events: expected 400 unknown_event_type, got %d %v", status, body)
	}
}

func TestParseEventTypes(t *testing.T) {
	all, ok := parseEventTypes("")
	if !ok || len(all) != len(streamableEvents) {
		t.Fatalf("expected every streamable type, got %v", all)
	}
	got, ok := parseEventTypes("task.created, task.created ,task.deleted")
	if !ok || len(got) != 2 {
		t.Fatalf("expected deduplicated pair, got %v %v", got, ok)
	}
	if _, ok := parseEventTypes("apikey.create"); ok {
		t.Fatal("apikey events must not be streamable")
	}
}

func TestVisibleTo(t *testing.T) {
	tests := []struct {
		name    string
		role    models.RoleName
		payload events.Payload
		want    bool
	}{
		{"manager own task", models.RoleProjectManager, events.Payload{"resource_type": "task", "created_by_id": "u1"}, true},
		{"manager foreign task", models.RoleProjectManager, events.Payload{"resource_type": "task", "created_by_id": "u2"}, false},
		{"engineer assigned", models.RoleEngineer, events.Payload{"resource_type": "task", "created_by_id": "u2", "assigned_to_id": "u1"}, true},
		{"engineer unassigned", models.RoleEngineer, events.Payload{"resource_type": "task", "created_by_id": "u1"}, false},
		{"settings", models.RoleEngineer, events.Payload{"resource_type": "working_hours"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := auth.Actor{UserID: "u1", Role: tt.role}
			if got := visibleTo(caller, tt.payload); got != tt.want {
				t.Fatalf("visibleTo = %v, want %v", got, tt.want)
			}
		})
	}
}
