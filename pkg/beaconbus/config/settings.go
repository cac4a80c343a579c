package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Settings is the explicit configuration a client, beacon module or
// manager is constructed with. Nothing in this module reads process-wide
// configuration; callers load Settings once and pass them down.
type Settings struct {
	// Timeout bounds every wait for a completion event.
	Timeout time.Duration

	// Test makes every mutating operation a dry run.
	Test bool

	// SocketPath is the event hub's unix socket.
	SocketPath string

	// MinionID scopes persisted beacons.
	MinionID string

	// ConfFile is the main minion configuration file. Save writes next to it.
	ConfFile string

	// DefaultInclude is the include glob relative to ConfFile's directory.
	DefaultInclude string

	// StrictCorrelation rejects replies that carry no correlation ID.
	StrictCorrelation bool

	// BufferSize is the per-handle mailbox size.
	BufferSize int

	// StorePath is the SQLite database for the manager. Empty keeps beacons
	// in memory.
	StorePath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// DialRetries is the number of attempts made to open the hub socket.
	DialRetries int

	// Pillar holds beacons configured in pillar. The manager lists them
	// but refuses to change them.
	Pillar map[string]any
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Timeout:        60 * time.Second,
		SocketPath:     "/var/run/beaconbus/minion.sock",
		MinionID:       "minion",
		ConfFile:       "/etc/salt/minion",
		DefaultInclude: "minion.d/*.conf",
		BufferSize:     256,
		LogLevel:       "info",
		DialRetries:    3,
	}
}

// SettingsFrom overlays the keys present in cfg onto DefaultSettings.
//
// Recognized keys: timeout, test, socket, id, conf_file, default_include,
// strict_correlation, buffer_size, store, log_level, dial_retries, and
// the beacons mapping of a pillar section.
func SettingsFrom(cfg Config) (Settings, error) {
	s := DefaultSettings()
	s.Timeout = cfg.Duration("timeout", s.Timeout)
	s.Test = cfg.Bool("test", s.Test)
	s.SocketPath = cfg.String("socket", s.SocketPath)
	s.MinionID = cfg.String("id", s.MinionID)
	s.ConfFile = cfg.String("conf_file", s.ConfFile)
	s.DefaultInclude = cfg.String("default_include", s.DefaultInclude)
	s.StrictCorrelation = cfg.Bool("strict_correlation", s.StrictCorrelation)
	s.BufferSize = cfg.Int("buffer_size", s.BufferSize)
	s.StorePath = cfg.String("store", s.StorePath)
	s.LogLevel = cfg.String("log_level", s.LogLevel)
	s.DialRetries = cfg.Int("dial_retries", s.DialRetries)
	if pillar := cfg.Map("pillar"); pillar.Has("beacons") {
		s.Pillar = pillar.Map("beacons").Raw()
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads path and returns the resulting settings.
func LoadSettings(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return SettingsFrom(cfg)
}

// Validate reports the first invalid field.
func (s Settings) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", s.BufferSize)
	}
	if s.DialRetries < 1 {
		return fmt.Errorf("dial_retries must be at least 1, got %d", s.DialRetries)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level for LogLevel, defaulting to info.
func (s Settings) Level() slog.Level {
	level, err := ParseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps a level name onto a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
