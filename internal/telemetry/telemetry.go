// Package telemetry wires OpenTelemetry tracing and metrics. With telemetry
// disabled every component still receives a usable noop tracer and noop
// instruments, so callers never branch on whether export is on.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "asksql"

// Stack is what the rest of the application takes from telemetry.
type Stack struct {
	Tracer      trace.Tracer
	Instruments *Instruments

	shutdowns []func(context.Context) error
}

// Setup builds a noop stack when enabled is false. Otherwise it registers
// global trace and meter providers backed by OTLP gRPC exporters; the
// endpoint comes from OTEL_EXPORTER_OTLP_ENDPOINT.
func Setup(ctx context.Context, enabled bool, version string) (*Stack, error) {
	if !enabled {
		return &Stack{
			Tracer:      noop.NewTracerProvider().Tracer(meterName),
			Instruments: NoopInstruments(),
		}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	spans, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(spans), sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	// Only the HTTP transport carries W3C trace headers.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Stack{
		Tracer:      tp.Tracer(meterName),
		Instruments: newInstrumentsFromMeter(mp.Meter(meterName)),
		shutdowns:   []func(context.Context) error{tp.Shutdown, mp.Shutdown},
	}, nil
}

// Shutdown flushes pending spans and metrics. It is safe on a nil or noop
// stack and on repeated calls.
func (s *Stack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, fn := range s.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.shutdowns = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
