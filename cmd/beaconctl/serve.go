package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/ipc"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/manager"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/observability"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/store"
)

func newServeCmd(a *app) *cobra.Command {
	var storePath, watchPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event hub and beacon manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if storePath == "" {
				storePath = a.settings.StorePath
			}
			return serve(cmd.Context(), a, storePath, watchPath)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database for beacons (default: in memory)")
	cmd.Flags().StringVar(&watchPath, "watch", "", "beacons.conf file to load and watch")
	return cmd
}

func serve(ctx context.Context, a *app, storePath, watchPath string) error {
	logger := a.logger
	metrics := observability.NewMetricsRecorder()

	bus := event.NewBus(event.BusConfig{
		BufferSize: a.settings.BufferSize,
		OnDrop: func(env *event.Envelope, subscriberID string) {
			observability.LogDrop(logger, env.Tag.String(), subscriberID)
			metrics.RecordDrop(context.Background(), subscriberID)
		},
		OnError: func(env *event.Envelope, subscriberID string, err error) {
			logger.Warn("subscriber failed",
				slog.String("tag", env.Tag.String()),
				slog.String("subscriber", subscriberID),
				slog.String("error", err.Error()))
		},
	})
	defer bus.Close()

	var st store.Store = store.NewMemoryStore()
	if storePath != "" {
		sqlite, err := store.NewSQLiteStore(storePath)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		st = sqlite
	}
	defer st.Close()

	mgr, err := manager.New(
		manager.WithStore(st),
		manager.WithMinionID(a.settings.MinionID),
		manager.WithPillar(a.settings.Pillar),
		manager.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("starting beacon manager: %w", err)
	}
	sub := mgr.Attach(bus)
	if sub == nil {
		return errors.New("attaching beacon manager: bus is full")
	}
	defer sub.Unsubscribe()

	hub := ipc.NewHub(a.settings.SocketPath, bus, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Serve(gctx)
	})
	if watchPath != "" {
		g.Go(func() error {
			return mgr.Watch(gctx, watchPath)
		})
	}

	logger.Info("beacon manager serving",
		slog.String("minion", a.settings.MinionID),
		slog.String("socket", a.settings.SocketPath))
	return g.Wait()
}
