package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer adapts an otel trace.Tracer to the Tracer interface.
type otelTracer struct {
	tracer trace.Tracer
}

// NewOTELTracer wraps a trace.Tracer (e.g. otel.Tracer("agentplatform")) as a
// Tracer.
func NewOTELTracer(tracer trace.Tracer) Tracer {
	return otelTracer{tracer: tracer}
}

func (t otelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s otelSpan) AddEvent(name string, attrs ...any) {
	// attrs is a loosely-typed key/value list kept symmetrical with Logger;
	// OTEL events only take a name here to avoid pulling attribute encoding
	// into every call site.
	_ = attrs
	s.span.AddEvent(name)
}

func (s otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}
