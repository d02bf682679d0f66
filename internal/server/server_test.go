package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/worktime/internal/config"
	"github.com/friendsincode/worktime/internal/logbuffer"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		HTTPBind:         "127.0.0.1",
		HTTPPort:         0,
		DBBackend:        config.DatabaseSQLite,
		DBDSN:            ":memory:",
		JWTSigningKey:    "server-test-secret",
		JWTTTL:           time.Hour,
		SessionMaxAge:    24 * time.Hour,
		DefaultWorkStart: "09:00",
		DefaultWorkEnd:   "17:00",
	}
}

func TestServerServesHealthAndAPI(t *testing.T) {
	srv, err := New(testConfig(), logbuffer.New(100), zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/tasks/", http.StatusUnauthorized},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.status {
				t.Fatalf("GET %s = %d, want %d", tt.path, rr.Code, tt.status)
			}
			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Fatalf("GET %s missing security headers", tt.path)
			}
		})
	}
}

func TestHealthzReportsVersion(t *testing.T) {
	srv, err := New(testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %v, want ok", body["status"])
	}
	if v, _ := body["version"].(string); v == "" {
		t.Fatal("expected version in health response")
	}
	if _, ok := body["leader"]; ok {
		t.Fatal("leader should be omitted without leader election")
	}
}
