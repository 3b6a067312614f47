package monitoring

import (
	"strconv"
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
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 作文管道指标

	SubmissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "essay_submissions_total",
			Help: "Total number of essay submissions by outcome",
		},
		[]string{"outcome"}, // accepted / evaluation_failed / conflict / rejected
	)

	EvaluatorRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "evaluator_retries_total",
			Help: "Total number of evaluator call retries",
		},
	)

	EvaluatorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluator_failures_total",
			Help: "Evaluator failures after retry exhaustion, by reason code",
		},
		[]string{"reason"},
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_duration_seconds",
			Help:    "Duration of external evaluation calls including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	OpenAlerts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "open_alerts",
			Help: "Number of currently open alerts by type",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SubmissionCounter)
	prometheus.MustRegister(EvaluatorRetries)
	prometheus.MustRegister(EvaluatorFailures)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(OpenAlerts)
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
