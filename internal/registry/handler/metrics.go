package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bridgeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	bridgeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	bridgeAnchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_anchors_total",
		Help: "Total anchors confirmed on the public chain, by state.",
	}, []string{"state_code"})

	bridgeEncumbranceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_encumbrance_transitions_total",
		Help: "Total encumbrance transitions by action and sync outcome.",
	}, []string{"action", "synced"})

	bridgeHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_health_checks_total",
		Help: "Total health check probes by result.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		bridgeRequestsTotal.WithLabelValues(method, path, status).Inc()
		bridgeRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordAnchorSubmitted records a confirmed anchor submission.
func RecordAnchorSubmitted(stateCode string) {
	bridgeAnchorsTotal.WithLabelValues(stateCode).Inc()
}

// RecordEncumbranceTransition records a completed lifecycle transition.
func RecordEncumbranceTransition(action string, synced bool) {
	bridgeEncumbranceTransitions.WithLabelValues(action, strconv.FormatBool(synced)).Inc()
}

// RecordHealthCheck records a health check probe result.
func RecordHealthCheck(success bool) {
	if success {
		bridgeHealthChecksTotal.WithLabelValues("success").Inc()
	} else {
		bridgeHealthChecksTotal.WithLabelValues("failure").Inc()
	}
}
