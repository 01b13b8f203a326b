package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Routes served by the query API. Anything else is labelled RouteOther.
const (
	RouteQuery   = "/v1/query"
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
	RouteOther   = "other"
)

var knownRoutes = map[string]struct{}{
	RouteQuery:   {},
	RouteHealth:  {},
	RouteMetrics: {},
}

// Query API Prometheus metrics.
var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phenodex",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Query API requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phenodex",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Query API request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)

	APIRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "phenodex",
			Subsystem: "api",
			Name:      "requests_in_flight",
			Help:      "Query API requests being served",
		},
	)
)

var registerAPIOnce sync.Once

// RegisterAPIMetrics registers the query API metrics. Safe to call more than once.
func RegisterAPIMetrics() {
	registerAPIOnce.Do(func() {
		prometheus.MustRegister(APIRequestsTotal)
		prometheus.MustRegister(APIRequestDuration)
		prometheus.MustRegister(APIRequestsInFlight)
	})
}

// Middleware records request count, duration and concurrency per API route.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			APIRequestsInFlight.Inc()
			defer APIRequestsInFlight.Dec()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := RouteOther
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = routeLabel(rctx.RoutePattern())
			}

			APIRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
			APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel maps a chi route pattern to one of the API routes.
func routeLabel(pattern string) string {
	if _, ok := knownRoutes[pattern]; ok {
		return pattern
	}
	return RouteOther
}
