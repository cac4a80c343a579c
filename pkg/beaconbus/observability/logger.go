// Package observability provides structured logging, metrics, and
// tracing for bus-correlated calls.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds a slog logger writing to w. Text output is meant for
// terminals, JSON for everything else.
func NewLogger(w io.Writer, level slog.Leveler, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EnrichLogger adds call context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "add", corrID)
//	enriched.Info("publishing") // includes operation and correlation_id
func EnrichLogger(logger *slog.Logger, operation, correlationID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("operation", operation),
		slog.String("correlation_id", correlationID),
	)
}

// LogCallStart logs a request about to be published.
func LogCallStart(logger *slog.Logger, tag string) {
	if logger == nil {
		return
	}
	logger.Debug("call starting",
		slog.String("tag", tag),
	)
}

// LogCallComplete logs a call that received its completion event.
func LogCallComplete(logger *slog.Logger, durationMs float64, success bool) {
	if logger == nil {
		return
	}
	logger.Debug("call completed",
		slog.Float64("duration_ms", durationMs),
		slog.Bool("success", success),
	)
}

// LogCallFailure logs a call that ended in the failure taxonomy.
func LogCallFailure(logger *slog.Logger, kind string, comment string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Warn("call failed",
		slog.String("kind", kind),
		slog.String("comment", comment),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDrop logs an envelope evicted from a full mailbox.
func LogDrop(logger *slog.Logger, tag, subscriberID string) {
	if logger == nil {
		return
	}
	logger.Warn("mailbox full, dropped oldest envelope",
		slog.String("tag", tag),
		slog.String("subscriber", subscriberID),
	)
}

// LogReply dumps a completion payload at debug level.
func LogReply(logger *slog.Logger, tag string, payload map[string]any) {
	if logger == nil {
		return
	}
	logger.Debug("reply received",
		slog.String("tag", tag),
		slog.Any("payload", payload),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
