// Package metrics exposes prometheus instrumentation for the HTTP surface,
// the dispatch worker, and the retention sweeper.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kittypup_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kittypup_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// GinMiddleware records request counts and latency.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

type DispatchMetrics struct {
	Enqueued  prometheus.Counter
	Delivered prometheus.Counter
	Retried   prometheus.Counter
	Exhausted prometheus.Counter
}

func NewDispatchMetrics() *DispatchMetrics {
	return &DispatchMetrics{
		Enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_dispatch_enqueued_total",
			Help: "Jobs handed to the dispatch queue.",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_dispatch_delivered_total",
			Help: "Jobs accepted by the compute worker.",
		}),
		Retried: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_dispatch_retried_total",
			Help: "Transient dispatch failures scheduled for retry.",
		}),
		Exhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_dispatch_exhausted_total",
			Help: "Jobs failed after the retry budget ran out.",
		}),
	}
}

type RetentionMetrics struct {
	SweptJobs      prometheus.Counter
	DeletedObjects prometheus.Counter
	DeleteErrors   prometheus.Counter
}

func NewRetentionMetrics() *RetentionMetrics {
	return &RetentionMetrics{
		SweptJobs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_retention_swept_jobs_total",
			Help: "Completed jobs whose input artifacts were purged.",
		}),
		DeletedObjects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_retention_deleted_objects_total",
			Help: "Input artifacts deleted by the retention sweep.",
		}),
		DeleteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kittypup_retention_delete_errors_total",
			Help: "Per-artifact delete failures (logged, sweep continues).",
		}),
	}
}
