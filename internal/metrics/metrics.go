// README: Prometheus instruments for provider calls, caches and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wayfare",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})

	// LLMRequests counts provider calls by outcome ("ok" or an error kind).
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Total LLM provider calls",
	}, []string{"provider", "model", "outcome"})

	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wayfare",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "LLM provider call latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"provider", "model"})

	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by direction",
	}, []string{"provider", "model", "direction"})

	LLMCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "llm",
		Name:      "estimated_cost_usd_total",
		Help:      "Estimated LLM spend in USD",
	}, []string{"provider", "model"})

	ModelFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "recommendations",
		Name:      "model_fallbacks_total",
		Help:      "Times a request moved on to the next fallback model",
	}, []string{"operation", "model"})

	ItinerarySectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "recommendations",
		Name:      "section_failures_total",
		Help:      "Itinerary sections that degraded to placeholder text",
	}, []string{"section"})

	// RouteRequests counts routing provider calls by kind ("route", "matrix") and outcome.
	RouteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "routes",
		Name:      "requests_total",
		Help:      "Total routing provider calls",
	}, []string{"kind", "outcome"})

	OptimizerSkippedCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "routes",
		Name:      "optimizer_skipped_candidates_total",
		Help:      "Candidate legs skipped because the distance oracle failed",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"backend"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wayfare",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"backend"})
)

// Middleware records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
