package beaconbus_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

const (
	testCompletion event.Tag = "/salt/minion/minion_test_complete"
)

// newTestBus returns a bus that is closed when the test ends.
func newTestBus(t *testing.T) *event.LocalBus {
	t.Helper()
	bus := event.NewBus(event.BusConfig{BufferSize: 16})
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

// respond subscribes a responder that answers every request with the
// envelopes reply builds.
func respond(t *testing.T, bus *event.LocalBus, reply func(req *event.Envelope) []*event.Envelope) {
	t.Helper()
	sub := bus.Subscribe([]event.Tag{"manage_beacons"}, event.TagHandler(nil,
		func(_ context.Context, req *event.Envelope) ([]*event.Envelope, error) {
			return reply(req), nil
		}))
	if sub == nil {
		t.Fatal("subscribe failed")
	}
	t.Cleanup(sub.Unsubscribe)
}

// completeWith replies on testCompletion with data.
func completeWith(data map[string]any) func(*event.Envelope) []*event.Envelope {
	return func(req *event.Envelope) []*event.Envelope {
		return []*event.Envelope{event.NewReply(req, testCompletion, data)}
	}
}

// downTransport never connects.
type downTransport struct{}

func (downTransport) Connect(context.Context, string) (event.Bus, error) {
	return nil, fmt.Errorf("dial: %w", event.ErrUnavailable)
}

// mutedTransport connects handles whose publications are refused.
type mutedTransport struct {
	closed int
}

func (m *mutedTransport) Connect(context.Context, string) (event.Bus, error) {
	return &mutedBus{owner: m}, nil
}

type mutedBus struct {
	owner *mutedTransport
}

func (b *mutedBus) Publish(context.Context, *event.Envelope) (bool, error) {
	return false, nil
}

func (b *mutedBus) WaitFor(context.Context, event.Tag, time.Duration, ...event.WaitOption) (*event.Envelope, error) {
	return nil, errors.New("unexpected wait")
}

func (b *mutedBus) Receive(context.Context) (*event.Envelope, error) {
	return nil, event.ErrClosed
}

func (b *mutedBus) Close() error {
	b.owner.closed++
	return nil
}
