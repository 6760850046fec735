package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name of the simulator spans.
const TracerName = "github.com/0xsamuel-eth/rocket-simulation"

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string    // stdout | none
	Writer      io.Writer // stdout exporter destination, os.Stderr when nil
	SampleRatio float64
}

// TracingConfigFromEnv pulls tracing configuration from environment variables.
func TracingConfigFromEnv() TracingConfig {
	exporter := strings.ToLower(os.Getenv("ROCKETSIM_TRACING_EXPORTER"))
	if exporter == "" {
		exporter = "stdout"
	}
	service := os.Getenv("ROCKETSIM_TRACING_SERVICE_NAME")
	if service == "" {
		service = "rocketsim"
	}
	ratio := 1.0
	if raw := os.Getenv("ROCKETSIM_TRACING_SAMPLE_RATIO"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			ratio = parsed
		}
	}
	return TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("ROCKETSIM_TRACING_ENABLED"), "true"),
		ServiceName: service,
		Exporter:    exporter,
		SampleRatio: ratio,
	}
}

// InitTracing wires the global tracer provider. It returns a shutdown function to flush spans.
func InitTracing(ctx context.Context, cfg TracingConfig, logger log.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if !cfg.Enabled || cfg.Exporter == "none" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		logger.Log("level", "debug", "subsys", "tracing", "message", "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	logger.Log("level", "info", "subsys", "tracing", "exporter", cfg.Exporter, "service", cfg.ServiceName, "ratio", cfg.SampleRatio)
	return tp.Shutdown, nil
}

// Tracer returns the simulator tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// ShutdownWithTimeout invokes the provided shutdown function with a bounded timeout.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, logger log.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil && logger != nil {
		logger.Log("level", "warning", "subsys", "tracing", "message", "shutdown failed", "err", err)
	}
}
