/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics handler returned %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tasks/abc", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rr.Code)
	}

	body := scrape(t)
	if !strings.Contains(body, `worktime_api_requests_total{endpoint="/tasks/{id}",method="GET",status="418"}`) {
		t.Fatal("expected request counter labelled with the route pattern")
	}
	if strings.Contains(body, `endpoint="/tasks/abc"`) {
		t.Fatal("raw path must not be used as a label")
	}
}

func TestHandlerExposesEngineMetrics(t *testing.T) {
	EngineComputationsTotal.WithLabelValues("ok").Inc()

	if !strings.Contains(scrape(t), "worktime_engine_computations_total") {
		t.Fatal("expected engine computation metric in exposition output")
	}
}
