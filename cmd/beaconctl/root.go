package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/ipc"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/observability"
)

// errOutcomeFailed is returned after a failed outcome has been printed.
var errOutcomeFailed = errors.New("outcome failed")

// app carries global flags and what they resolve to.
type app struct {
	configPath string
	socket     string
	timeout    time.Duration
	test       bool
	logLevel   string

	settings config.Settings
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "beaconctl",
		Short:         "Manage minion beacons over the event bus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "settings file (.yaml, .json, .jsonc, .toml)")
	flags.StringVar(&a.socket, "socket", "", "event hub socket path")
	flags.DurationVar(&a.timeout, "timeout", 0, "wait for each completion event (e.g. 30s)")
	flags.BoolVar(&a.test, "test", false, "dry run: report what would change")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newOperationCmds(a)...)
	return root
}

// resolve loads settings and applies flag overrides.
func (a *app) resolve(cmd *cobra.Command) error {
	settings := config.DefaultSettings()
	if a.configPath != "" {
		loaded, err := config.LoadSettings(a.configPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		settings = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("socket") {
		settings.SocketPath = a.socket
	}
	if flags.Changed("timeout") {
		settings.Timeout = a.timeout
	}
	if flags.Changed("test") {
		settings.Test = a.test
	}
	if flags.Changed("log-level") {
		settings.LogLevel = a.logLevel
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	a.settings = settings
	a.logger = newLogger(cmd.ErrOrStderr(), settings.Level())
	return nil
}

// newLogger writes text to terminals and JSON everywhere else.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	json := true
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		json = false
	}
	return observability.NewLogger(w, level, json)
}

// module builds a beacon module talking to the hub socket.
func (a *app) module() *beacons.Module {
	retry := bberrors.DialRetry
	retry.MaxAttempts = a.settings.DialRetries

	transport := ipc.NewTransport(a.settings.SocketPath,
		ipc.WithRetry(retry),
		ipc.WithBufferSize(a.settings.BufferSize),
		ipc.WithLogger(a.logger))

	client := beaconbus.NewClient(transport,
		beaconbus.WithSettings(a.settings),
		beaconbus.WithLogger(a.logger),
		beaconbus.WithMetrics(observability.NewMetricsRecorder()),
		beaconbus.WithSpanManager(observability.NewSpanManager()))

	return beacons.New(client, beacons.WithLogger(a.logger))
}
