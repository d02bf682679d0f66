/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "worktime"

var (
	// APIRequestDuration observes request latency by method, route and status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency partitioned by method, route and status",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Number of HTTP requests partitioned by method, route and status",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "active_connections",
		Help:      "Number of in-flight HTTP requests",
	})

	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "websocket_connections",
		Help:      "Open event stream connections",
	})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Database operation latency partitioned by operation and table",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "errors_total",
		Help:      "Number of failed database operations",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "connections_active",
		Help:      "Open connections in the database pool",
	})

	// EngineComputationsTotal counts end-instant computations by outcome
	// (ok, not_configured, no_working_day, invalid).
	EngineComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "computations_total",
		Help:      "Number of end-instant computations partitioned by outcome",
	}, []string{"outcome"})

	EngineIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "iterations",
		Help:      "Loop iterations used per successful computation",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache hits partitioned by cache name",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache misses partitioned by cache name",
	}, []string{"cache"})

	LeaderStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cluster",
		Name:      "is_leader",
		Help:      "1 when this instance holds the leader lock",
	})

	SessionsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "sessions_reaped_total",
		Help:      "Sessions deactivated by the expiry reaper",
	})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhooks",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries partitioned by result",
	}, []string{"result"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
