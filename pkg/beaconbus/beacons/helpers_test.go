package beacons_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/manager"
)

var psConfig = []any{
	map[string]any{"processes": map[string]any{"salt-master": "stopped", "apache2": "stopped"}},
}

// recorder remembers the func of every request it forwards.
type recorder struct {
	mu    sync.Mutex
	funcs []string
}

func (r *recorder) record(env *event.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs = append(r.funcs, fmt.Sprint(env.Data["func"]))
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.funcs)
}

type fixture struct {
	bus      *event.LocalBus
	manager  *manager.Manager
	requests *recorder
	module   *beacons.Module
	settings config.Settings
}

// newFixture wires a module to a real manager over an in-process bus.
func newFixture(t *testing.T, opts ...manager.Option) *fixture {
	t.Helper()

	bus := event.NewBus(event.BusConfig{BufferSize: 32})
	t.Cleanup(func() { _ = bus.Close() })

	mgr, err := manager.New(opts...)
	require.NoError(t, err)

	rec := &recorder{}
	sub := bus.Subscribe([]event.Tag{beacons.RequestTag}, event.TagHandler(nil,
		func(ctx context.Context, env *event.Envelope) ([]*event.Envelope, error) {
			rec.record(env)
			return mgr.Handle(ctx, env)
		}))
	require.NotNil(t, sub)

	settings := config.DefaultSettings()
	settings.ConfFile = t.TempDir() + "/minion"
	client := beaconbus.NewClient(bus, beaconbus.WithSettings(settings))

	return &fixture{
		bus:      bus,
		manager:  mgr,
		requests: rec,
		module:   beacons.New(client),
		settings: settings,
	}
}

// scripted wires a module to a responder that answers each request with
// reply(func, request). A nil payload sends nothing.
func scripted(t *testing.T, reply func(fn string, req *event.Envelope) map[string]any) *beacons.Module {
	t.Helper()

	bus := event.NewBus(event.BusConfig{BufferSize: 32})
	t.Cleanup(func() { _ = bus.Close() })

	bus.Subscribe([]event.Tag{beacons.RequestTag}, event.TagHandler(nil,
		func(_ context.Context, req *event.Envelope) ([]*event.Envelope, error) {
			fn := fmt.Sprint(req.Data["func"])
			payload := reply(fn, req)
			if payload == nil {
				return nil, nil
			}
			return []*event.Envelope{event.NewReply(req, beacons.CompletionTag(beacons.Operation(fn)), payload)}, nil
		}))

	return beacons.New(beaconbus.NewClient(bus))
}

// downTransport never connects.
type downTransport struct{}

func (downTransport) Connect(context.Context, string) (event.Bus, error) {
	return nil, event.ErrUnavailable
}
