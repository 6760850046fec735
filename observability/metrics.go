package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FlightsTotal counts the simulated flights by outcome.
	FlightsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocketsim_flights_total",
			Help: "Total number of simulated flights, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	// FlightEvents counts the flight events by kind.
	FlightEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocketsim_flight_events_total",
			Help: "Total number of flight events, labeled by kind.",
		},
		[]string{"kind"},
	)

	// IntegrationSteps counts the integrator steps.
	IntegrationSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocketsim_integration_steps_total",
			Help: "Total number of integrator steps, labeled by status (accepted, rejected).",
		},
		[]string{"status"},
	)

	// FlightDuration observes the wall clock time spent simulating one flight.
	FlightDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rocketsim_flight_duration_seconds",
			Help:    "Wall clock duration of one flight simulation in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Apogee observes the apogee above ground level of the simulated flights.
	Apogee = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rocketsim_apogee_agl_meters",
			Help:    "Apogee above ground level of the simulated flights.",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rocketsim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rocketsim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(FlightsTotal)
	prometheus.MustRegister(FlightEvents)
	prometheus.MustRegister(IntegrationSteps)
	prometheus.MustRegister(FlightDuration)
	prometheus.MustRegister(Apogee)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
}

// ObserveFlight records the outcome of one simulated flight.
func ObserveFlight(outcome string, wall time.Duration, accepted, rejected uint64) {
	FlightsTotal.WithLabelValues(outcome).Inc()
	FlightDuration.Observe(wall.Seconds())
	IntegrationSteps.WithLabelValues("accepted").Add(float64(accepted))
	IntegrationSteps.WithLabelValues("rejected").Add(float64(rejected))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizeRoute collapses identifiers so that labels keep a bounded cardinality.
func normalizeRoute(path string) string {
	switch path {
	case "/", "/healthz", "/metrics", "/flights":
		return path
	}
	rest, ok := strings.CutPrefix(path, "/flights/")
	if !ok || rest == "" {
		return "other"
	}
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		return "other"
	}
	switch sub {
	case "":
		return "/flights/{id}"
	case "kml", "trajectory.csv":
		return "/flights/{id}/" + sub
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
