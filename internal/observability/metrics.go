package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couplespace_refresh_total",
			Help: "Total number of synchronization refresh attempts.",
		},
		[]string{"feed", "outcome"},
	)
	refreshSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couplespace_refresh_skipped_total",
			Help: "Refresh calls skipped because one was already in flight.",
		},
		[]string{"feed"},
	)
	sendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couplespace_send_total",
			Help: "Total number of optimistic sends.",
		},
		[]string{"type", "outcome"},
	)
	mediaResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couplespace_media_resolve_total",
			Help: "Total number of batched temp-URL resolutions.",
		},
		[]string{"outcome"},
	)
	expiredPurgeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couplespace_expired_purge_total",
			Help: "Best-effort remote deletions of expired ephemeral messages.",
		},
		[]string{"outcome"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couplespace_http_requests_total",
			Help: "Total number of HTTP requests processed by the devserver.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "couplespace_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "couplespace_ws_active_connections",
			Help: "Number of active change-feed websocket connections.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "couplespace_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		refreshTotal,
		refreshSkippedTotal,
		sendTotal,
		mediaResolveTotal,
		expiredPurgeTotal,
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		amqpPublishErrorsTotal,
	)
}

// IncRefresh records one refresh attempt for a feed.
func IncRefresh(feed, outcome string) {
	refreshTotal.WithLabelValues(feed, outcome).Inc()
}

// IncRefreshSkipped records a refresh call coalesced by the in-flight guard.
func IncRefreshSkipped(feed string) {
	refreshSkippedTotal.WithLabelValues(feed).Inc()
}

// IncSend records one optimistic send.
func IncSend(messageType, outcome string) {
	sendTotal.WithLabelValues(messageType, outcome).Inc()
}

// IncMediaResolve records one batched URL resolution.
func IncMediaResolve(outcome string) {
	mediaResolveTotal.WithLabelValues(outcome).Inc()
}

// IncExpiredPurge records one best-effort expired-message deletion.
func IncExpiredPurge(outcome string) {
	expiredPurgeTotal.WithLabelValues(outcome).Inc()
}

// IncWSConnection tracks change-feed websocket connect/disconnect.
func IncWSConnection(delta int) {
	wsActiveConnections.Add(float64(delta))
}

// IncAMQPPublishError records a failed AMQP publish.
func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

// GinMiddleware records request counts and latencies per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
