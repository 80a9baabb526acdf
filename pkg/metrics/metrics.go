// Package metrics collects Prometheus metrics for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records API metrics. A nil *Collector is a valid no-op, so
// services built without metrics need no special casing.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	auth     *prometheus.CounterVec
	taskOps  *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

// NewCollector creates a Collector and registers it with reg. Passing a
// *prometheus.Registry also makes it the source for Handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskapi_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskapi_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskapi_auth_events_total",
			Help: "Registrations and logins by outcome.",
		}, []string{"event", "outcome"}),
		taskOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskapi_task_operations_total",
			Help: "Task operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		gatherer: prometheus.DefaultGatherer,
	}

	reg.MustRegister(c.requests, c.latency, c.auth, c.taskOps)
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	return c
}

func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) RecordAuth(event, outcome string) {
	if c == nil {
		return
	}
	c.auth.WithLabelValues(event, outcome).Inc()
}

func (c *Collector) RecordTaskOp(op, outcome string) {
	if c == nil {
		return
	}
	c.taskOps.WithLabelValues(op, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
