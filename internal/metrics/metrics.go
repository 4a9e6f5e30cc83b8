package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summoner_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "summoner_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// QueryActive tracks whether a CLI query is in flight
	QueryActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summoner_query_active",
			Help: "1 while a CLI query is in flight",
		},
	)

	// QueriesTotal counts completed CLI queries by outcome
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summoner_queries_total",
			Help: "Total number of CLI queries by outcome",
		},
		[]string{"status"},
	)

	// QueryCostUSD tracks reported query cost
	QueryCostUSD = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summoner_query_cost_usd",
			Help:    "Reported cost per completed query in USD",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// EventBufferDrops tracks dropped events due to buffer overflow
	EventBufferDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summoner_event_buffer_drops_total",
			Help: "Total number of events dropped due to buffer overflow",
		},
	)

	// ToolCalls tracks MCP tool invocations
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summoner_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "status"},
	)

	// ScheduleExecutions counts scheduled prompt runs by outcome
	ScheduleExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summoner_schedule_executions_total",
			Help: "Total number of scheduled prompt executions",
		},
		[]string{"status"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware creates an HTTP middleware that records metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// normalizePath normalizes URL paths to avoid high cardinality
func normalizePath(path string) string {
	switch path {
	case "/health", "/ready", "/mcp", "/mcp/", "/metrics":
		return path
	default:
		if strings.HasPrefix(path, "/mcp/") {
			return "/mcp"
		}
		if strings.HasPrefix(path, "/frontend/") {
			return "/frontend"
		}
		return "other"
	}
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordToolCall records an MCP tool invocation
func RecordToolCall(tool, status string) {
	ToolCalls.WithLabelValues(tool, status).Inc()
}

// RecordQueryStart marks a CLI query as in flight
func RecordQueryStart() {
	QueryActive.Set(1)
}

// RecordQueryEnd records a finished CLI query
func RecordQueryEnd(status string, costUSD *float64) {
	QueryActive.Set(0)
	QueriesTotal.WithLabelValues(status).Inc()
	if costUSD != nil {
		QueryCostUSD.Observe(*costUSD)
	}
}

// RecordEventDrop records an event buffer drop
func RecordEventDrop() {
	EventBufferDrops.Inc()
}

// RecordScheduleExecution records a scheduled prompt run
func RecordScheduleExecution(status string) {
	ScheduleExecutions.WithLabelValues(status).Inc()
}
