package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the API
type Metrics struct {
	PlanCount          *prometheus.CounterVec
	SolveCount         *prometheus.CounterVec
	planDuration       prometheus.Summary
	httpDuration       *prometheus.HistogramVec
	responseStatusCode *prometheus.CounterVec
	totalRequests      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PlanCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenic",
			Name:      "plan_requests_total",
			Help:      "The total number of planning requests by outcome",
		}, []string{"outcome"}),
		SolveCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenic",
			Name:      "solve_requests_total",
			Help:      "The total number of direct solver requests by outcome",
		}, []string{"outcome"}),
		planDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  "scenic",
			Name:       "plan_duration_seconds",
			Help:       "The duration of planning requests",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scenic",
			Name:      "request_duration_seconds",
			Help:      "The duration of request",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		responseStatusCode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenic",
			Name:      "response_status_code",
			Help:      "The status code of http response",
		}, []string{"status", "method", "path"}),
		totalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenic",
			Name:      "total_requests",
			Help:      "The total number of requests",
		}, []string{"path", "method", "status"}),
	}
	reg.MustRegister(m.PlanCount, m.SolveCount, m.planDuration, m.httpDuration, m.responseStatusCode, m.totalRequests)
	return m
}

func (m *Metrics) observePlan(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.PlanCount.WithLabelValues(outcome).Inc()
	m.planDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeSolve(outcome string) {
	if m == nil {
		return
	}
	m.SolveCount.WithLabelValues(outcome).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// PrometheusMiddleware records duration and status of every request. Paths
// are labelled by route pattern so plan IDs do not explode the label set.
func PrometheusMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := strconv.Itoa(rw.statusCode)

			m.httpDuration.With(prometheus.Labels{"method": r.Method, "path": path}).Observe(time.Since(start).Seconds())
			m.responseStatusCode.With(prometheus.Labels{"status": status, "method": r.Method, "path": path}).Inc()
			m.totalRequests.With(prometheus.Labels{"path": path, "method": r.Method, "status": status}).Inc()
		})
	}
}
