package mcp

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Failure kinds reported in ToolObservation.ErrorKind.
const (
	ErrorKindUnknownTool      = "unknown_tool"
	ErrorKindInvalidArguments = "invalid_arguments"
	ErrorKindUpstream         = "upstream"
	ErrorKindPanic            = "panic"
	ErrorKindEncoding         = "encoding"
)

// ToolObservation describes one finished tool invocation.
type ToolObservation struct {
	ToolName  string
	Start     time.Time
	Duration  time.Duration
	Success   bool
	ErrorKind string
}

// Observer brackets every Dispatch call. StartInvoke runs before the tool
// and the context it returns is handed to the tool and to ObserveInvoke.
type Observer interface {
	StartInvoke(ctx context.Context, toolName string) context.Context
	ObserveInvoke(ctx context.Context, observation ToolObservation)
}

type nopObserver struct{}

func (nopObserver) StartInvoke(ctx context.Context, _ string) context.Context { return ctx }

func (nopObserver) ObserveInvoke(context.Context, ToolObservation) {}

// invokeSpanKey carries the span opened by StartInvoke.
type invokeSpanKey struct{}

// ToolObserver records tool invocations into OpenTelemetry.
type ToolObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewToolObserver creates a tool observer bound to the provided meter/tracer.
// tracer may be nil to record metrics only.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	invocations, err := meter.Int64Counter(
		"konnect_mcp.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"konnect_mcp.tool.latency",
		metric.WithDescription("Tool latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ToolObserver{
		tracer:      tracer,
		invocations: invocations,
		latency:     latency,
	}, nil
}

// StartInvoke opens the tool.invoke span. Upstream calls made with the
// returned context become its children.
func (o *ToolObserver) StartInvoke(ctx context.Context, toolName string) context.Context {
	if o == nil || o.tracer == nil {
		return ctx
	}
	ctx, span := o.tracer.Start(ctx, "tool.invoke",
		trace.WithAttributes(attribute.String("tool_name", toolName)),
	)
	return context.WithValue(ctx, invokeSpanKey{}, span)
}

// ObserveInvoke records one invocation result and ends the span opened by
// StartInvoke, if any.
func (o *ToolObserver) ObserveInvoke(ctx context.Context, observation ToolObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", observation.ErrorKind))
	}

	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, observation.Duration.Seconds(), options)

	span, ok := ctx.Value(invokeSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	span.SetAttributes(attrs...)
	if observation.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, observation.ErrorKind)
	}
	span.End()
}

var _ Observer = (*ToolObserver)(nil)
