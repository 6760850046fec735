package observability

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizeRoute(t *testing.T) {
	for path, exp := range map[string]string{
		"/":                           "/",
		"/metrics":                    "/metrics",
		"/flights":                    "/flights",
		"/flights/":                   "other",
		"/flights/abc":                "/flights/{id}",
		"/flights/abc/kml":            "/flights/{id}/kml",
		"/flights/abc/trajectory.csv": "/flights/{id}/trajectory.csv",
		"/flights/abc/other":          "other",
		"/flights//kml":               "other",
		"/admin":                      "other",
	} {
		if got := normalizeRoute(path); got != exp {
			t.Errorf("normalizeRoute(%q) = %q, expected %q", path, got, exp)
		}
	}
}

func TestMiddleware(t *testing.T) {
	teapot := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	teapot.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/flights/42", nil))
	ObserveFlight("ok", 20*time.Millisecond, 10, 2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, exp := range []string{
		`rocketsim_http_requests_total{code="418",method="GET",path="/flights/{id}"} 1`,
		`rocketsim_flights_total{outcome="ok"} 1`,
		`rocketsim_integration_steps_total{status="rejected"} 2`,
		`rocketsim_flight_duration_seconds_count 1`,
	} {
		if !strings.Contains(string(body), exp) {
			t.Errorf("missing %s", exp)
		}
	}
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "jaeger"}, nil); err == nil {
		t.Fatal("expected an unsupported exporter error")
	}

	var buf bytes.Buffer
	shutdown, err = InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "stdout", ServiceName: "test", Writer: &buf, SampleRatio: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, span := Tracer().Start(context.Background(), "flight")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)
	if !strings.Contains(buf.String(), `"Name": "flight"`) {
		t.Fatalf("span not exported: %s", buf.String())
	}
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("ROCKETSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("ROCKETSIM_TRACING_EXPORTER", "")
	t.Setenv("ROCKETSIM_TRACING_SAMPLE_RATIO", "2")
	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "stdout" || cfg.ServiceName != "rocketsim" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	t.Setenv("ROCKETSIM_TRACING_SAMPLE_RATIO", "0.25")
	if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 0.25 {
		t.Fatalf("ratio = %f", cfg.SampleRatio)
	}
}
