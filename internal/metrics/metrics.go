// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by method, chi route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration records request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "garden_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// WebSocketConnections is the gauge of open WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "garden_ws_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts garden events handed to the hub by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_ws_events_total",
		Help: "Total garden events broadcast by type",
	}, []string{"event"})

	// WebSocketDroppedTotal counts messages dropped because a client buffer was full.
	WebSocketDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "garden_ws_dropped_total",
		Help: "Total WebSocket messages dropped due to backpressure",
	})

	// AuthEventsTotal counts authentication attempts by event and result.
	AuthEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_auth_events_total",
		Help: "Total authentication events by event and result",
	}, []string{"event", "result"})
)

func RecordAuth(event string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	AuthEventsTotal.WithLabelValues(event, result).Inc()
}
