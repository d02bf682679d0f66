package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/worktime/internal/accounts"
	"github.com/friendsincode/worktime/internal/apperr"
	"github.com/friendsincode/worktime/internal/auth"
	"github.com/friendsincode/worktime/internal/db"
	"github.com/friendsincode/worktime/internal/events"
	"github.com/friendsincode/worktime/internal/models"
	"github.com/friendsincode/worktime/internal/settings"
	"github.com/friendsincode/worktime/internal/tasks"
	"github.com/friendsincode/worktime/internal/worktime"
)

var testSecret = []byte("api-test-secret")

type testEnv struct {
	server   *httptest.Server
	accounts *accounts.Service
	bus      *events.Bus
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := database.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return database
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := setupTestDB(t)
	bus := events.NewBus()
	logger := zerolog.Nop()

	accountsSvc := accounts.NewService(database, bus, nil, testSecret, time.Hour, logger)
	settingsSvc := settings.NewService(database, bus, nil, settings.Options{}, logger)
	taskSvc := tasks.NewService(database, bus, settingsSvc, logger)

	a := New(database, testSecret, accountsSvc, taskSvc, settingsSvc, nil, nil, bus, nil, logger)
	a.SetEventStream(bus)
	r := chi.NewRouter()
	a.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, accounts: accountsSvc, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", username, status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login %s returned no token", username)
	}
	return token
}

func (e *testEnv) seedManager(t *testing.T) string {
	t.Helper()
	_, err := e.accounts.CreateUser(context.Background(), auth.Actor{}, accounts.NewUser{
		Username: "pm",
		Password: "pm-password",
		Role:     models.RoleProjectManager,
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	return e.login(t, "pm", "pm-password")
}

func TestScheduleTaskFlow(t *testing.T) {
	env := newTestEnv(t)
	pmToken := env.seedManager(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "eng",
		"password": "eng-password",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: status %d body %v", status, body)
	}
	engineerID, _ := body["id"].(string)
	if body["role"] != string(models.RoleEngineer) {
		t.Fatalf("registered role = %v, want ENGINEER", body["role"])
	}
	engToken := env.login(t, "eng", "eng-password")

	status, body = env.do(t, http.MethodPost, "/api/v1/tasks/", pmToken, map[string]any{
		"title":          "Ship release",
		"assigned_to_id": engineerID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create task: status %d body %v", status, body)
	}
	taskID, _ := body["id"].(string)

	// Scheduling before working hours exist is a precondition failure.
	status, body = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID+"/estimate", engToken, map[string]any{
		"time_estimate": 1.625,
	})
	if status != http.StatusOK {
		t.Fatalf("estimate: status %d body %v", status, body)
	}
	status, body = env.do(t, http.MethodPost, "/api/v1/tasks/"+taskID+"/calculate-end-date", pmToken, map[string]string{
		"start_date_time": "2024-01-15T09:00:00Z",
	})
	if status != http.StatusPreconditionFailed {
		t.Fatalf("calculate without hours: status %d body %v", status, body)
	}
	if body["error"] != "working_hours_not_configured" {
		t.Fatalf("error code = %v", body["error"])
	}

	status, body = env.do(t, http.MethodPut, "/api/v1/settings/working-hours", pmToken, map[string]string{
		"start_time": "09:00",
		"end_time":   "17:00",
	})
	if status != http.StatusOK {
		t.Fatalf("working hours: status %d body %v", status, body)
	}
	status, body = env.do(t, http.MethodPost, "/api/v1/settings/one-time-holidays/", pmToken, map[string]string{
		"date":        "2024-01-16",
		"description": "Office closed",
	})
	if status != http.StatusCreated {
		t.Fatalf("holiday: status %d body %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/tasks/"+taskID+"/calculate-end-date", pmToken, map[string]string{
		"start_date_time": "2024-01-15T09:00:00Z",
	})
	if status != http.StatusOK {
		t.Fatalf("calculate: status %d body %v", status, body)
	}
	if body["status"] != string(models.TaskStatusScheduled) {
		t.Fatalf("status = %v, want SCHEDULED", body["status"])
	}
	end, err := time.Parse(time.RFC3339, fmt.Sprint(body["end_date_time"]))
	if err != nil {
		t.Fatalf("parse end_date_time %v: %v", body["end_date_time"], err)
	}
	want := time.Date(2024, 1, 17, 14, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Fatalf("end = %s, want %s", end, want)
	}

	// The engineer can see the task but cannot schedule it.
	status, _ = env.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, engToken, nil)
	if status != http.StatusOK {
		t.Fatalf("engineer get: status %d", status)
	}
	status, _ = env.do(t, http.MethodPost, "/api/v1/tasks/"+taskID+"/calculate-end-date", engToken, map[string]string{
		"start_date_time": "2024-01-15T09:00:00Z",
	})
	if status != http.StatusForbidden {
		t.Fatalf("engineer calculate: status %d, want 403", status)
	}
}

func TestComputeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pmToken := env.seedManager(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		end    string
	}{
		{
			name: "window override skips weekend",
			body: map[string]any{
				"start":         "2024-01-19T10:00:00Z",
				"estimate_days": 1.5,
				"work_start":    "09:00",
				"work_end":      "17:00",
			},
			status: http.StatusOK,
			end:    "2024-01-22T14:00:00Z",
		},
		{
			name: "holiday overrides",
			body: map[string]any{
				"start":         "2024-01-15T10:00:00Z",
				"estimate_days": 1.5,
				"work_start":    "09:00",
				"work_end":      "17:00",
				"recurring":     []string{"01-16"},
			},
			status: http.StatusOK,
			end:    "2024-01-17T14:00:00Z",
		},
		{
			name:   "no working hours",
			body:   map[string]any{"start": "2024-05-24T08:00:00Z", "estimate_days": 1},
			status: http.StatusPreconditionFailed,
		},
		{
			name:   "bad start",
			body:   map[string]any{"start": "tomorrow", "estimate_days": 1, "work_start": "08:00", "work_end": "16:00"},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/v1/worktime/compute", pmToken, tt.body)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.status, body)
			}
			if tt.end == "" {
				return
			}
			end, err := time.Parse(time.RFC3339, fmt.Sprint(body["end"]))
			if err != nil {
				t.Fatalf("parse end %v: %v", body["end"], err)
			}
			want, _ := time.Parse(time.RFC3339, tt.end)
			if !end.Equal(want) {
				t.Fatalf("end = %s, want %s", end, want)
			}
		})
	}
}

func TestComputeEndpointAcceptsLocalSeconds(t *testing.T) {
	env := newTestEnv(t)
	pmToken := env.seedManager(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/worktime/compute", pmToken, map[string]any{
		"start":         "2024-01-15 10:00:30",
		"estimate_days": 0.5,
		"work_start":    "09:00",
		"work_end":      "17:00",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", status, body)
	}
	end, err := time.Parse(time.RFC3339, fmt.Sprint(body["end"]))
	if err != nil {
		t.Fatalf("parse end %v: %v", body["end"], err)
	}
	want := time.Date(2024, 1, 15, 14, 0, 30, 0, time.Local)
	if !end.Equal(want) {
		t.Fatalf("end = %s, want %s", end, want)
	}
}

func TestManagerRoutesRejectEngineers(t *testing.T) {
	env := newTestEnv(t)
	env.seedManager(t)
	if _, err := env.accounts.Register(context.Background(), auth.Actor{}, accounts.NewUser{Username: "eng", Password: "eng-password"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	engToken := env.login(t, "eng", "eng-password")

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users/engineers"},
		{http.MethodGet, "/api/v1/settings/working-hours"},
		{http.MethodGet, "/api/v1/audit"},
		{http.MethodPost, "/api/v1/tasks/"},
	}
	for _, p := range paths {
		status, _ := env.do(t, p.method, p.path, engToken, map[string]string{})
		if status != http.StatusForbidden {
			t.Fatalf("%s %s: status %d, want 403", p.method, p.path, status)
		}
	}

	status, _ := env.do(t, http.MethodGet, "/api/v1/tasks/", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous list: status %d, want 401", status)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedManager(t)

	if status, _ := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil); status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	if status, _ := env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil); status != http.StatusNoContent {
		t.Fatalf("logout: status %d", status)
	}
	if status, _ := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil); status != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d, want 401", status)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("bad %s", "input"), http.StatusBadRequest, "validation_failed"},
		{"credentials", fmt.Errorf("login: %w", apperr.ErrInvalidCredentials), http.StatusUnauthorized, "invalid_credentials"},
		{"forbidden", apperr.Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{"not found", apperr.NotFound("task"), http.StatusNotFound, "not_found"},
		{"duplicate", apperr.Duplicate("holiday"), http.StatusConflict, "conflict"},
		{"not configured", &worktime.ConfigurationError{Reason: "no working hours"}, http.StatusPreconditionFailed, "working_hours_not_configured"},
		{"exhausted", worktime.ErrNoWorkingDay, http.StatusUnprocessableEntity, "no_working_day"},
		{"estimate", worktime.ErrInvalidEstimate, http.StatusBadRequest, "validation_failed"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			if status != tt.status || code != tt.code {
				t.Fatalf("errorStatus(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}
