// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "foodshare",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodshare",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodshare",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	indexQueries = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "foodshare",
			Subsystem: "location_index",
			Name:      "query_duration_seconds",
			Help:      "Duration of radius queries against the location index.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
		[]string{"backend"},
	)

	indexErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foodshare",
			Subsystem: "location_index",
			Name:      "errors_total",
			Help:      "Location index operations that failed.",
		},
		[]string{"backend", "op"},
	)

	indexSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "foodshare",
			Subsystem: "location_index",
			Name:      "entries",
			Help:      "Posts loaded into the location index by the last rebuild.",
		},
		[]string{"backend"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		indexQueries,
		indexErrors,
		indexSize,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveIndexQuery records the duration of one radius query.
func ObserveIndexQuery(backend string, d time.Duration) {
	indexQueries.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordIndexError counts a failed index operation such as "insert" or "query".
func RecordIndexError(backend, op string) {
	indexErrors.WithLabelValues(backend, op).Inc()
}

// SetIndexSize records how many posts the index holds after a rebuild.
func SetIndexSize(backend string, n int) {
	indexSize.WithLabelValues(backend).Set(float64(n))
}
