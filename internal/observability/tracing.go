package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/ringflight/internal/config"
	"github.com/signalsfoundry/ringflight/internal/logging"
	"github.com/signalsfoundry/ringflight/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "github.com/signalsfoundry/ringflight"

// stdoutSink receives spans from the stdout exporter.
var stdoutSink io.Writer = os.Stdout

// InitTracing installs the global tracer provider described by cfg and
// returns the function that flushes it. With tracing off, spans go to a
// noop provider.
func InitTracing(ctx context.Context, cfg config.Tracing, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "run tracing off")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("InitTracing: %w", err)
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("InitTracing: %s exporter: %w", cfg.Exporter, err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.namespace", "ringflight"),
		)),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "run tracing on",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg config.Tracing) (sdktrace.SpanExporter, error) {
	if cfg.Exporter == config.ExporterOTLP {
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(stdoutSink),
		stdouttrace.WithoutTimestamps(),
	)
}

// ShutdownWithTimeout flushes pending spans, giving up after five seconds.
// Failures are logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

// Tracer returns the module's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartRunSpan opens the span covering one timed or free-flight run.
func StartRunSpan(ctx context.Context, run int, mode model.Mode) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "ringflight.run", trace.WithAttributes(
		attribute.Int("run", run),
		attribute.String("run.mode", mode.String()),
	))
}

// EndRunSpan records the outcome on span and ends it. A failed run marks
// the span with an error status.
func EndRunSpan(span trace.Span, out *model.Outcome) {
	if out != nil {
		span.SetAttributes(
			attribute.Bool("run.success", out.Success),
			attribute.Int("run.passed", out.PassedCount),
			attribute.Float64("run.elapsed_seconds", out.Elapsed),
		)
		if !out.Success {
			span.SetStatus(codes.Error, "course not completed")
		}
	}
	span.End()
}
