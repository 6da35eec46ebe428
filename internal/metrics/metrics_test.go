package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/bookings/{hash_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ts := httptest.NewServer(m.Middleware(mux))
	defer ts.Close()

	for _, id := range []string{"qb-1", "qb-2"} {
		resp, err := http.Get(ts.URL + "/v1/bookings/" + id)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /v1/bookings/{hash_id}", "404"))
	if got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
}

func TestMiddleware_Unmatched(t *testing.T) {
	m := New()
	ts := httptest.NewServer(m.Middleware(http.NewServeMux()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestMiddleware_PreservesFlusher(t *testing.T) {
	m := New()
	var flushable bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !flushable {
		t.Error("wrapped writer should implement http.Flusher")
	}
}

func TestRecordValidation(t *testing.T) {
	m := New()
	m.RecordValidation("answer", 3)
	m.RecordValidation("answer", 0)
	if got := testutil.ToFloat64(m.ValidationFailures.WithLabelValues("answer")); got != 3 {
		t.Errorf("validation failures = %v, want 3", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.BookingsCreated.WithLabelValues("evt-1").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`quill_bookings_created_total{event_id="evt-1"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_Independent(t *testing.T) {
	// Separate instances must not collide on registration.
	a, b := New(), New()
	a.SchemaSaves.WithLabelValues("replace", "ok").Inc()
	if got := testutil.ToFloat64(b.SchemaSaves.WithLabelValues("replace", "ok")); got != 0 {
		t.Errorf("second instance saw %v saves", got)
	}
}
