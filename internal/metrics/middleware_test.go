package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func apiRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post(RouteQuery, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	r.Get(RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get(RouteMetrics, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/debug/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func serve(r http.Handler, method, path string) int {
	req := httptest.NewRequest(method, path, http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr.Code
}

func TestMiddleware_LabelsAPIRoutes(t *testing.T) {
	r := apiRouter()

	tests := []struct {
		method string
		path   string
		route  string
		status string
	}{
		{"POST", "/v1/query", RouteQuery, "200"},
		{"GET", "/health", RouteHealth, "503"},
		{"GET", "/metrics", RouteMetrics, "200"},
	}
	for _, tc := range tests {
		t.Run(tc.route, func(t *testing.T) {
			counter := APIRequestsTotal.WithLabelValues(tc.route, tc.method, tc.status)
			before := testutil.ToFloat64(counter)

			serve(r, tc.method, tc.path)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("requests_total{route=%q,status=%q} grew by %v, want 1", tc.route, tc.status, got)
			}
		})
	}

	if testutil.CollectAndCount(APIRequestDuration) == 0 {
		t.Error("expected request_duration_seconds observations")
	}
	if v := testutil.ToFloat64(APIRequestsInFlight); v != 0 {
		t.Errorf("requests_in_flight = %v after all requests finished", v)
	}
}

func TestMiddleware_UnknownPathsShareOneLabel(t *testing.T) {
	r := apiRouter()

	notFound := APIRequestsTotal.WithLabelValues(RouteOther, "GET", "404")
	unlisted := APIRequestsTotal.WithLabelValues(RouteOther, "GET", "200")
	notFoundBefore, unlistedBefore := testutil.ToFloat64(notFound), testutil.ToFloat64(unlisted)

	for _, path := range []string{"/v2/query", "/admin", "/v1/query/extra"} {
		if code := serve(r, "GET", path); code != http.StatusNotFound {
			t.Fatalf("%s: got %d, want 404", path, code)
		}
	}
	serve(r, "GET", "/debug/a")
	serve(r, "GET", "/debug/b")

	if got := testutil.ToFloat64(notFound) - notFoundBefore; got != 3 {
		t.Errorf("unmatched paths counted %v times under %q, want 3", got, RouteOther)
	}
	if got := testutil.ToFloat64(unlisted) - unlistedBefore; got != 2 {
		t.Errorf("unlisted routes counted %v times under %q, want 2", got, RouteOther)
	}
}

func TestMiddleware_WrongMethodOnQuery(t *testing.T) {
	r := apiRouter()
	counter := APIRequestsTotal.WithLabelValues(RouteOther, "GET", "405")
	before := testutil.ToFloat64(counter)

	if code := serve(r, "GET", "/v1/query"); code != http.StatusMethodNotAllowed {
		t.Fatalf("got %d, want 405", code)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("405 counted %v times, want 1", got)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"", RouteOther},
		{"/v1/query", RouteQuery},
		{"/health", RouteHealth},
		{"/metrics", RouteMetrics},
		{"/debug/{name}", RouteOther},
	}
	for _, tc := range tests {
		if got := routeLabel(tc.pattern); got != tc.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestRegisterAPIMetrics_Idempotent(t *testing.T) {
	RegisterAPIMetrics()
	RegisterAPIMetrics()

	APIRequestsTotal.WithLabelValues(RouteQuery, "POST", "200").Inc()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "phenodex_api_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("phenodex_api_requests_total not registered")
	}
}

func TestMetricsHandler_ViaPromhttp(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics() // second call is a no-op

	ProbeMaxSafeResults.Set(11700)
	BuildDiseasesTotal.WithLabelValues("average", "stored").Add(3)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	for _, want := range []string{
		"phenodex_probe_max_safe_results 11700",
		`phenodex_build_diseases_total{result="stored",variant="average"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
