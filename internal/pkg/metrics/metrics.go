// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tempchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Realtime metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempchat_ws_connections",
			Help: "Currently open websocket connections",
		},
	)

	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tempchat_rooms_active",
			Help: "Rooms with at least one present member",
		},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempchat_presence_transitions_total",
			Help: "Presence transitions by kind",
		},
		[]string{"transition"}, // joined, rejoined, pending, resumed, left
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempchat_messages_posted_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempchat_events_dropped_total",
			Help: "Outbound events dropped because a connection queue was full or closed",
		},
		[]string{"event"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tempchat_rate_limit_hits_total",
			Help: "Requests rejected by the IP rate limiter",
		},
	)

	// Retention metrics
	RecordsSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tempchat_records_swept_total",
			Help: "Expired records removed by the sweeper",
		},
		[]string{"collection"},
	)
)

// Middleware records request count and latency labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
