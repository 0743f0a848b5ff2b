package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	sferrors "github.com/greenbasket/storefront/internal/errors"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func newTestRouter(m *Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/api/cart/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	r.Get("/plain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	r := newTestRouter(m)

	for _, path := range []string{"/api/cart/items/1", "/api/cart/items/2", "/boom", "/plain", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/api/cart/items/{id}", "GET", "204")); got != 2 {
		t.Errorf("requests(items, 204) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/boom", "GET", "500")); got != 1 {
		t.Errorf("requests(boom, 500) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/plain", "GET", "200")); got != 1 {
		t.Errorf("requests(plain, 200) = %v, want 1", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("/api/cart/items/{id}", "GET")); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestObserveAPICall(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.ObserveAPICall("POST", "/api/login", 200, 30*time.Millisecond, nil)
	m.ObserveAPICall("POST", "/api/login", 401, 10*time.Millisecond, sferrors.New("E002").WithStatus(401))
	m.ObserveAPICall("GET", "/api/session", 0, time.Second, sferrors.New("E001"))
	m.ObserveAPICall("GET", "/api/session", 0, time.Second, errors.New("mystery"))

	tests := []struct {
		method, route, outcome string
		want                   float64
	}{
		{"POST", "/api/login", "ok", 1},
		{"POST", "/api/login", "api", 1},
		{"GET", "/api/session", "transport", 1},
		{"GET", "/api/session", "internal", 1},
	}
	for _, tt := range tests {
		if got := metricCounterValue(t, m.apiCalls.WithLabelValues(tt.method, tt.route, tt.outcome)); got != tt.want {
			t.Errorf("api_calls(%s %s %s) = %v, want %v", tt.method, tt.route, tt.outcome, got, tt.want)
		}
	}
	if got := metricHistogramCount(t, m.apiDuration.WithLabelValues("POST", "/api/login")); got != 2 {
		t.Errorf("api duration samples = %d, want 2", got)
	}
}

func TestGaugesAndCounters(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))

	m.RecordContextOpen()
	m.RecordContextOpen()
	m.RecordContextClose()
	m.RecordWebSocketOpen()
	m.RecordWebSocketError("write")
	m.RecordPersistFailure(errors.New("quota"))

	if got := metricGaugeValue(t, m.activeContexts); got != 1 {
		t.Errorf("active_contexts = %v, want 1", got)
	}
	if got := metricGaugeValue(t, m.wsConnections); got != 1 {
		t.Errorf("websocket_connections = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.wsErrors.WithLabelValues("write")); got != 1 {
		t.Errorf("websocket_errors(write) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.persistFailures); got != 1 {
		t.Errorf("cart_persist_failures = %v, want 1", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	m.RecordContextOpen()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "storefront_active_contexts 1") {
		t.Errorf("metrics output missing gauge:\n%s", rec.Body.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=502") {
		t.Errorf("log line = %q", out)
	}
}
