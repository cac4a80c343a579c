package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func attributeKey(k string) attribute.Key {
	return attribute.Key(k)
}

// setupTracingTest installs an in-memory tracer provider for the test.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("beaconbus")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		tracer = otel.Tracer("beaconbus")
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func TestStartCallSpan(t *testing.T) {
	exporter := setupTracingTest(t)

	ctx, span := NewSpanManager().StartCallSpan(context.Background(), "add", "corr-1")
	AddSpanEvent(ctx, "published", attribute.String("tag", "manage_beacons"))
	EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "beaconbus.call.add", s.Name)
	assert.Equal(t, trace.SpanKindClient, s.SpanKind)
	assert.Equal(t, codes.Ok, s.Status.Code)
	assert.Contains(t, s.Attributes, attribute.String("call.correlation_id", "corr-1"))
	require.Len(t, s.Events, 1)
	assert.Equal(t, "published", s.Events[0].Name)
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)

	_, span := StartCallSpan(context.Background(), "list", "")
	EndSpanWithError(span, errors.New("timeout"))
	EndSpanWithError(nil, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "timeout", spans[0].Status.Description)
}

func TestNoopSpanManager(t *testing.T) {
	ctx := context.Background()
	got, span := NoopSpanManager{}.StartCallSpan(ctx, "add", "c")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())
}

func TestLogHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelDebug, true)
	enriched := EnrichLogger(logger, "add", "corr-9")

	LogCallStart(enriched, "manage_beacons")
	LogCallComplete(enriched, 1.5, true)
	LogCallFailure(enriched, "timeout", "no reply", 60000)
	LogDrop(logger, "x", "handle-1")
	LogReply(enriched, "/salt/minion/minion_beacons_list_complete", map[string]any{"complete": true})

	out := buf.String()
	assert.Contains(t, out, `"correlation_id":"corr-9"`)
	assert.Contains(t, out, `"msg":"call failed"`)
	assert.Contains(t, out, `"msg":"mailbox full, dropped oldest envelope"`)
	assert.Contains(t, out, `"payload":{"complete":true}`)

	assert.Nil(t, EnrichLogger(nil, "add", ""))
	assert.NotPanics(t, func() { LogCallStart(nil, "x") })
	assert.GreaterOrEqual(t, TimedOperation()(), 0.0)
}
