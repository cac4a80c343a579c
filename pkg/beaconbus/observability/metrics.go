package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records call and bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCall records a finished call. kind is "none" on success.
	RecordCall(ctx context.Context, operation, kind string, duration time.Duration)

	// RecordPublish records a publish attempt.
	RecordPublish(ctx context.Context, tag string, sent bool)

	// RecordDrop records an envelope evicted from a full mailbox.
	RecordDrop(ctx context.Context, subscriberID string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	calls       metric.Int64Counter
	callLatency metric.Float64Histogram
	callErrors  metric.Int64Counter
	publishes   metric.Int64Counter
	drops       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("beaconbus")

	calls, err := meter.Int64Counter("beaconbus.call.count",
		metric.WithDescription("Number of correlated calls"),
	)
	if err != nil {
		return nil, err
	}

	callLatency, err := meter.Float64Histogram("beaconbus.call.latency_ms",
		metric.WithDescription("Call latency from publish to completion event in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	callErrors, err := meter.Int64Counter("beaconbus.call.errors",
		metric.WithDescription("Number of failed calls by failure kind"),
	)
	if err != nil {
		return nil, err
	}

	publishes, err := meter.Int64Counter("beaconbus.bus.publishes",
		metric.WithDescription("Number of publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("beaconbus.bus.drops",
		metric.WithDescription("Number of envelopes dropped by full mailboxes"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		calls:       calls,
		callLatency: callLatency,
		callErrors:  callErrors,
		publishes:   publishes,
		drops:       drops,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordCall(ctx context.Context, operation, kind string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.calls.Add(ctx, 1, attrs)
	m.callLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)

	if kind != "none" {
		m.callErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("kind", kind),
		))
	}
}

func (m *otelMetrics) RecordPublish(ctx context.Context, tag string, sent bool) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tag", tag),
		attribute.Bool("sent", sent),
	))
}

func (m *otelMetrics) RecordDrop(ctx context.Context, subscriberID string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(attribute.String("subscriber", subscriberID)))
}
