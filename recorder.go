package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
)

// Recorder reports every routed event as a structured OTel log record and
// as metrics.
type Recorder struct {
	logger   otellog.Logger
	routed   metric.Int64Counter
	duration metric.Float64Histogram
}

func NewRecorder(logger otellog.Logger, meter metric.Meter, bus *Bus) (*Recorder, error) {
	routed, err := meter.Int64Counter("bridge.events.routed",
		metric.WithDescription("Events dispatched by the router, by kind and outcome"))
	if err != nil {
		return nil, fmt.Errorf("routed counter: %w", err)
	}
	duration, err := meter.Float64Histogram("bridge.dispatch.duration",
		metric.WithDescription("Time spent dispatching one event"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("dispatch histogram: %w", err)
	}
	_, err = meter.Int64ObservableGauge("bridge.queue.depth",
		metric.WithDescription("Events waiting on the bus"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(bus.Len()))
			return nil
		}))
	if err != nil {
		return nil, fmt.Errorf("queue gauge: %w", err)
	}

	return &Recorder{logger: logger, routed: routed, duration: duration}, nil
}

// Routed records the outcome of one dispatch.
func (r *Recorder) Routed(ctx context.Context, event Event, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", event.Kind()),
		attribute.String("outcome", outcome),
	)
	r.routed.Add(ctx, 1, attrs)
	r.duration.Record(ctx, took.Seconds(), attrs)

	kvs := append(eventAttributes(event), otellog.String("outcome", outcome))
	severity := otellog.SeverityInfo
	if err != nil {
		severity = otellog.SeverityWarn
		kvs = append(kvs, otellog.String("error", err.Error()))
	}
	emit(ctx, r.logger, severity, event.Kind(), kvs...)
}

func eventAttributes(event Event) []otellog.KeyValue {
	switch e := event.(type) {
	case GameMessage:
		return []otellog.KeyValue{otellog.String("text", e.Text), otellog.Bool("silent", e.Silent)}
	case ChatMessage:
		return []otellog.KeyValue{otellog.String("text", e.Text)}
	case ChatCommand:
		return []otellog.KeyValue{otellog.String("command", e.Command), otellog.String("reply_to", string(e.ReplyTo))}
	}
	return nil
}

func emit(ctx context.Context, logger otellog.Logger, severity otellog.Severity, body string, attrs ...otellog.KeyValue) {
	var r otellog.Record
	r.SetTimestamp(time.Now())
	r.SetSeverity(severity)
	r.SetBody(otellog.StringValue(body))
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}
