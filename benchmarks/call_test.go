package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/manager"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// newModule wires a beacon module to an in-process manager.
func newModule(b *testing.B) *beacons.Module {
	b.Helper()
	bus := event.NewBus(event.DefaultBusConfig)
	b.Cleanup(func() { bus.Close() })

	mgr, err := manager.New(manager.WithLogger(quiet))
	if err != nil {
		b.Fatal(err)
	}
	sub := mgr.Attach(bus)
	b.Cleanup(sub.Unsubscribe)

	settings := config.DefaultSettings()
	settings.Timeout = 5 * time.Second
	client := beaconbus.NewClient(bus,
		beaconbus.WithSettings(settings),
		beaconbus.WithLogger(quiet))
	return beacons.New(client, beacons.WithLogger(quiet))
}

// BenchmarkCall_List measures one list round trip on the local bus.
func BenchmarkCall_List(b *testing.B) {
	m := newModule(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if out := m.List(ctx); !out.Success {
			b.Fatal(out.Comment)
		}
	}
}

// BenchmarkCall_List_Populated lists 50 configured beacons.
func BenchmarkCall_List_Populated(b *testing.B) {
	m := newModule(b)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("load_%d", i)
		out := m.Add(ctx, name, []any{
			map[string]any{"beacon_module": "load"},
			map[string]any{"averages": map[string]any{"1m": []any{0.0, 2.0}}},
		})
		if !out.Success {
			b.Fatal(out.Comment)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.List(ctx)
	}
}

// BenchmarkCall_AddDelete measures the pre-flight plus mutation round trips.
func BenchmarkCall_AddDelete(b *testing.B) {
	m := newModule(b)
	ctx := context.Background()
	cfg := []any{map[string]any{"processes": map[string]any{"salt-master": "running"}}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Add(ctx, "ps", cfg)
		_ = m.Delete(ctx, "ps")
	}
}

// BenchmarkCall_DryRun measures the short circuit taken before any I/O.
func BenchmarkCall_DryRun(b *testing.B) {
	m := newModule(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Reset(ctx, beacons.WithTest(true))
	}
}

// BenchmarkCall_Parallel runs list calls from concurrent callers.
func BenchmarkCall_Parallel(b *testing.B) {
	m := newModule(b)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = m.List(ctx)
		}
	})
}
