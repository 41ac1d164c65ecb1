// Package otelhelper provides distributed tracing functionality for request monitoring.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	// Common attribute keys.
	RequestIDKey    = "approvion.request.id"
	WorkflowTypeKey = "approvion.workflow.type"
	StepNameKey     = "approvion.step.name"
	ApproverIDKey   = "approvion.approver.id"
	RequesterIDKey  = "approvion.requester.id"
	EventIDKey      = "approvion.event.id"
	ServiceIDKey    = "approvion.service.id"
)

// InitTracer sets up the global OTLP HTTP tracer provider. Exporter endpoint
// and headers come from the standard OTEL_EXPORTER_OTLP_* environment
// variables. Callers must Shutdown the returned provider on exit.
func InitTracer(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
