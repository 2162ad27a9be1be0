package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Evaluations counts submission evaluations by outcome (ok, no_question_set, error).
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_evaluations_total",
			Help: "Submission evaluations by outcome",
		},
		[]string{"outcome"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "results_evaluation_duration_seconds",
			Help:    "Time to evaluate and persist one submission",
			Buckets: prometheus.DefBuckets,
		},
	)

	AutoSubmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_auto_submits_total",
			Help: "Sections closed by the expiry check",
		},
		[]string{"reason"},
	)

	// Releases counts release runs by trigger (manual, auto).
	Releases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_releases_total",
			Help: "Exam result releases by trigger",
		},
		[]string{"trigger"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "results_notifications_total",
			Help: "Result notifications by status",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			Evaluations,
			EvaluationDuration,
			AutoSubmits,
			Releases,
			Notifications,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
