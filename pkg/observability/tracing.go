// Package observability provides OpenTelemetry tracing for feed extraction.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/onix"

// Tracer returns the tracer of the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps a trace span and batches its attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)
	return ctx, &Span{span: span}
}

// SetAttribute adds an attribute to the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish sets the span status from err.
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// End flushes the batched attributes and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// StageTracer names spans after a component.
type StageTracer struct {
	component string
}

// NewStageTracer creates a tracer for component.
func NewStageTracer(component string) *StageTracer {
	return &StageTracer{component: component}
}

// StartSpan starts a span named "<component>.<stage>".
func (st *StageTracer) StartSpan(ctx context.Context, stage string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, st.component+"."+stage)
	span.SetAttribute("onix.component", st.component)
	span.SetAttribute("onix.stage", stage)
	return ctx, span
}

// Trace runs fn inside a stage span and records its outcome.
func (st *StageTracer) Trace(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	ctx, span := st.StartSpan(ctx, stage)
	defer span.End()

	err := fn(ctx)
	span.Finish(err)
	return err
}
