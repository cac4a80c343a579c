package beacons

import (
	"log/slog"
	"time"
)

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// callConfig holds per-call settings.
type callConfig struct {
	timeout       time.Duration
	test          bool
	includePillar bool
	includeOpts   bool
}

func defaultCallConfig() callConfig {
	return callConfig{
		includePillar: true,
		includeOpts:   true,
	}
}

// CallOption configures a single operation.
type CallOption func(*callConfig)

// WithTimeout overrides the configured wait for the completion event.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.timeout = d
	}
}

// WithTest makes the call a dry run.
func WithTest(test bool) CallOption {
	return func(c *callConfig) {
		c.test = test
	}
}

// IncludePillar controls whether listings include pillar beacons.
// Default: true
func IncludePillar(include bool) CallOption {
	return func(c *callConfig) {
		c.includePillar = include
	}
}

// IncludeOpts controls whether listings include beacons from the minion
// configuration.
// Default: true
func IncludeOpts(include bool) CallOption {
	return func(c *callConfig) {
		c.includeOpts = include
	}
}

func applyCallOptions(opts []CallOption) callConfig {
	cfg := defaultCallConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
