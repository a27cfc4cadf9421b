// Package otel provides OpenTelemetry integration for toolrun engine
// observations: invocation counters, retry counters, latency histograms,
// and per-invocation spans.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/toolrun/engine"
)

// InvokeObserver records engine invocation signals into OpenTelemetry.
type InvokeObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	retries     metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewInvokeObserver creates an observer bound to the provided meter/tracer.
func NewInvokeObserver(meter metric.Meter, tracer trace.Tracer) (*InvokeObserver, error) {
	invocations, err := meter.Int64Counter(
		"toolrun.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter(
		"toolrun.retries",
		metric.WithDescription("Number of tool retry attempts"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"toolrun.latency",
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InvokeObserver{
		tracer:      tracer,
		invocations: invocations,
		retries:     retries,
		latency:     latency,
	}, nil
}

// ObserveInvoke records one invocation result.
func (o *InvokeObserver) ObserveInvoke(observation engine.InvokeObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.Tool),
		attribute.String("strategy", observation.Strategy),
		attribute.Int("attempts", observation.Attempts),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", observation.ErrorKind))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, float64(time.Duration(observation.DurationMS)*time.Millisecond)/float64(time.Second), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.ErrorKind)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveRetry records one retry attempt.
func (o *InvokeObserver) ObserveRetry(observation engine.RetryObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.Tool),
		attribute.String("strategy", observation.Strategy),
		attribute.Int("attempt", observation.Attempt),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", observation.ErrorKind))
	}
	o.retries.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

var _ engine.Observer = (*InvokeObserver)(nil)
