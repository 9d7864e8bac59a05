package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRouter(t *testing.T) (*HTTPMetrics, http.Handler) {
	t.Helper()

	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/apples", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("apples"))
	})
	return m, r
}

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	m, router := newRouter(t)

	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/apples", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pears", nil))

	if got := testutil.ToFloat64(m.RequestTotals.WithLabelValues("GET", "/apples", "200")); got != 3 {
		t.Errorf("expected 3 requests for /apples, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestTotals.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("expected 1 unmatched 404, got %v", got)
	}
	if got := testutil.ToFloat64(m.RequestInFlight); got != 0 {
		t.Errorf("expected no requests in flight, got %v", got)
	}
	if got := testutil.CollectAndCount(m.RequestDuration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New failed: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("expected an error registering the same collectors twice")
	}
}
