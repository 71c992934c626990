// Package otel wires OpenTelemetry tracing for service processes.
package otel

import (
	"context"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	envEndpoint    = "ONEPAPER_OTEL_ENDPOINT"
	envEnabled     = "ONEPAPER_OTEL_ENABLED"
	envSampleRatio = "ONEPAPER_OTEL_SAMPLE_RATIO"

	instrumentationName = "github.com/louisbranch/onepaper"
)

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when ONEPAPER_OTEL_ENDPOINT is empty or
// ONEPAPER_OTEL_ENABLED is "false", Setup returns a no-op shutdown function
// and no global provider is registered. ONEPAPER_OTEL_SAMPLE_RATIO, when set
// to a value in (0,1), samples that fraction of root spans.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return noop, nil
	}

	endpoint := os.Getenv(envEndpoint)
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFromEnv()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the tracer used for spans in the given component. It reads
// the global provider on every call so it stays a no-op until Setup runs.
func Tracer(component string) trace.Tracer {
	name := instrumentationName
	if component = strings.TrimSpace(component); component != "" {
		name += "/" + component
	}
	return otel.Tracer(name)
}

func samplerFromEnv() sdktrace.Sampler {
	raw := strings.TrimSpace(os.Getenv(envSampleRatio))
	if raw == "" {
		return sdktrace.AlwaysSample()
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
