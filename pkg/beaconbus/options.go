package beaconbus

import (
	"log/slog"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/observability"
)

// DefaultRequestTag is the tag requests are published under.
const DefaultRequestTag event.Tag = "manage_beacons"

// DefaultScope is the bus scope a client connects with.
const DefaultScope = "minion"

// clientConfig holds configuration for a Client.
type clientConfig struct {
	settings   config.Settings
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	requestTag event.Tag
	scope      string
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		settings:   config.DefaultSettings(),
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		requestTag: DefaultRequestTag,
		scope:      DefaultScope,
	}
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

// WithSettings sets the timeout, dry-run and correlation settings.
// Default: config.DefaultSettings()
func WithSettings(s config.Settings) ClientOption {
	return func(c *clientConfig) {
		c.settings = s
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables call metrics.
//
// Example:
//
//	client := beaconbus.NewClient(transport,
//	    beaconbus.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) ClientOption {
	return func(c *clientConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager enables call tracing.
func WithSpanManager(s observability.SpanManager) ClientOption {
	return func(c *clientConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithRequestTag overrides the tag requests are published under.
// Default: "manage_beacons"
func WithRequestTag(tag event.Tag) ClientOption {
	return func(c *clientConfig) {
		if tag != "" {
			c.requestTag = tag
		}
	}
}

// WithScope overrides the scope used to connect.
// Default: "minion"
func WithScope(scope string) ClientOption {
	return func(c *clientConfig) {
		if scope != "" {
			c.scope = scope
		}
	}
}
