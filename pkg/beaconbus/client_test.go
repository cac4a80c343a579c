package beaconbus_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

func testRequest() beaconbus.Request {
	return beaconbus.Request{
		Operation:     "add",
		Label:         "Beacon add",
		Params:        map[string]any{"name": "ps"},
		Completion:    testCompletion,
		Timeout:       time.Second,
		DryRunComment: "Beacon: ps would be added.",
	}
}

func TestClient_Call_Success(t *testing.T) {
	bus := newTestBus(t)

	var seen *event.Envelope
	var mu sync.Mutex
	respond(t, bus, func(req *event.Envelope) []*event.Envelope {
		mu.Lock()
		seen = req
		mu.Unlock()
		return completeWith(map[string]any{"complete": true, "comment": "done"})(req)
	})

	client := beaconbus.NewClient(bus)
	out := client.Call(context.Background(), testRequest())

	assert.True(t, out.Success)
	assert.Equal(t, "done", out.Comment)
	assert.Equal(t, bberrors.KindNone, out.Failure)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, seen)
	assert.Equal(t, "add", seen.Data["func"])
	assert.Equal(t, "ps", seen.Data["name"])
	assert.Equal(t, seen.ID, seen.CorrelationID)
	assert.Equal(t, beaconbus.DefaultScope, seen.Source)
}

func TestClient_Call_InterpreterSeesReply(t *testing.T) {
	bus := newTestBus(t)
	respond(t, bus, completeWith(map[string]any{"beacons": map[string]any{"ps": []any{}}}))

	req := testRequest()
	req.Interpreter = beaconbus.InterpreterFunc(func(r beaconbus.Reply) beaconbus.Outcome {
		_, present := r.Complete()
		assert.False(t, present)
		return beaconbus.Succeeded("interpreted").WithData(r.Map("beacons"))
	})

	out := beaconbus.NewClient(bus).Call(context.Background(), req)
	assert.True(t, out.Success)
	assert.Equal(t, "interpreted", out.Comment)
	assert.Contains(t, out.Data, "ps")
}

func TestClient_Call_FuncNotOverriddenByParams(t *testing.T) {
	bus := newTestBus(t)

	funcs := make(chan any, 1)
	respond(t, bus, func(req *event.Envelope) []*event.Envelope {
		funcs <- req.Data["func"]
		return completeWith(map[string]any{"complete": true})(req)
	})

	req := testRequest()
	req.Params = map[string]any{"func": "delete"}
	out := beaconbus.NewClient(bus).Call(context.Background(), req)
	require.True(t, out.Success)
	assert.Equal(t, "add", <-funcs)
}

func TestClient_Call_DryRun(t *testing.T) {
	t.Run("request flag", func(t *testing.T) {
		req := testRequest()
		req.DryRun = true

		out := beaconbus.NewClient(downTransport{}).Call(context.Background(), req)
		assert.True(t, out.Success)
		assert.Equal(t, "Beacon: ps would be added.", out.Comment)
	})

	t.Run("settings test mode", func(t *testing.T) {
		settings := config.DefaultSettings()
		settings.Test = true

		out := beaconbus.NewClient(downTransport{}, beaconbus.WithSettings(settings)).
			Call(context.Background(), testRequest())
		assert.True(t, out.Success)
		assert.Equal(t, "Beacon: ps would be added.", out.Comment)
	})
}

func TestClient_Call_BusUnavailable(t *testing.T) {
	out := beaconbus.NewClient(downTransport{}).Call(context.Background(), testRequest())

	assert.False(t, out.Success)
	assert.Equal(t, "Event module not available. Beacon add failed.", out.Comment)
	assert.Equal(t, bberrors.KindBusUnavailable, out.Failure)
}

func TestClient_Call_NotSent(t *testing.T) {
	transport := &mutedTransport{}
	out := beaconbus.NewClient(transport).Call(context.Background(), testRequest())

	assert.False(t, out.Success)
	assert.Equal(t, "Event module not available. Beacon add event was not sent.", out.Comment)
	assert.Equal(t, bberrors.KindBusUnavailable, out.Failure)
	assert.Equal(t, 1, transport.closed, "handle must be closed")
}

func TestClient_Call_Timeout(t *testing.T) {
	bus := newTestBus(t)

	req := testRequest()
	req.Timeout = 50 * time.Millisecond

	out := beaconbus.NewClient(bus).Call(context.Background(), req)
	assert.False(t, out.Success)
	assert.Equal(t, "Did not receive the beacon add complete event before the timeout of 0.05s", out.Comment)
	assert.Equal(t, bberrors.KindTimeout, out.Failure)
	assert.Zero(t, bus.Stats().Handles, "handle must be closed")
}

func TestClient_Call_TimeoutUsesSettingsAndEventName(t *testing.T) {
	bus := newTestBus(t)

	settings := config.DefaultSettings()
	settings.Timeout = 30 * time.Millisecond

	req := testRequest()
	req.Timeout = 0
	req.Event = "beacons saved"

	out := beaconbus.NewClient(bus, beaconbus.WithSettings(settings)).Call(context.Background(), req)
	assert.Equal(t, "Did not receive the beacons saved complete event before the timeout of 0.03s", out.Comment)
}

func TestClient_Call_ZeroSettingsTimeoutFallsBackToDefault(t *testing.T) {
	bus := newTestBus(t)
	respond(t, bus, func(req *event.Envelope) []*event.Envelope {
		time.Sleep(20 * time.Millisecond)
		return completeWith(map[string]any{"complete": true, "comment": "done"})(req)
	})

	req := testRequest()
	req.Timeout = 0

	out := beaconbus.NewClient(bus, beaconbus.WithSettings(config.Settings{})).Call(context.Background(), req)
	assert.True(t, out.Success, out.Comment)
	assert.Equal(t, "done", out.Comment)
}

func TestClient_Call_RemoteRejected(t *testing.T) {
	bus := newTestBus(t)
	respond(t, bus, completeWith(map[string]any{"complete": false, "comment": "Beacon ps is not configured."}))

	req := testRequest()
	req.Interpreter = beaconbus.InterpreterFunc(func(beaconbus.Reply) beaconbus.Outcome {
		t.Error("interpreter must not run for an incomplete reply")
		return beaconbus.Outcome{}
	})

	out := beaconbus.NewClient(bus).Call(context.Background(), req)
	assert.False(t, out.Success)
	assert.Equal(t, "Beacon ps is not configured.", out.Comment)
	assert.Equal(t, bberrors.KindRemoteRejected, out.Failure)
}

func TestClient_Call_OtherTrafficStaysQueued(t *testing.T) {
	bus := newTestBus(t)
	respond(t, bus, func(req *event.Envelope) []*event.Envelope {
		return []*event.Envelope{
			event.NewReply(req, "/salt/minion/minion_unrelated", map[string]any{"complete": false}),
			event.NewReply(req, testCompletion, map[string]any{"complete": true, "comment": "ok"}),
		}
	})

	out := beaconbus.NewClient(bus).Call(context.Background(), testRequest())
	assert.True(t, out.Success)
	assert.Equal(t, "ok", out.Comment)
}

func TestClient_Call_Correlation(t *testing.T) {
	foreign := func(req *event.Envelope) []*event.Envelope {
		return []*event.Envelope{
			event.NewEnvelope(testCompletion, map[string]any{"complete": true, "comment": "someone else"},
				event.WithCorrelationID("not-"+req.ID)),
		}
	}
	uncorrelated := func(req *event.Envelope) []*event.Envelope {
		return []*event.Envelope{
			event.NewEnvelope(testCompletion, map[string]any{"complete": true, "comment": "legacy"}),
		}
	}

	tests := []struct {
		name    string
		strict  bool
		reply   func(*event.Envelope) []*event.Envelope
		success bool
	}{
		{name: "foreign reply ignored", reply: foreign},
		{name: "uncorrelated reply accepted", reply: uncorrelated, success: true},
		{name: "uncorrelated reply rejected when strict", strict: true, reply: uncorrelated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newTestBus(t)
			respond(t, bus, tt.reply)

			settings := config.DefaultSettings()
			settings.StrictCorrelation = tt.strict

			req := testRequest()
			req.Timeout = 50 * time.Millisecond

			out := beaconbus.NewClient(bus, beaconbus.WithSettings(settings)).Call(context.Background(), req)
			assert.Equal(t, tt.success, out.Success, out.Comment)
			if !tt.success {
				assert.Equal(t, bberrors.KindTimeout, out.Failure)
			}
		})
	}
}

func TestClient_Call_ConcurrentCallsGetTheirOwnReply(t *testing.T) {
	bus := event.NewBus(event.BusConfig{BufferSize: 64})
	t.Cleanup(func() { _ = bus.Close() })
	respond(t, bus, func(req *event.Envelope) []*event.Envelope {
		return completeWith(map[string]any{"comment": req.Data["name"]})(req)
	})

	client := beaconbus.NewClient(bus)
	const n = 8
	var wg sync.WaitGroup
	comments := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := testRequest()
			req.Params = map[string]any{"name": fmt.Sprintf("b%d", i)}
			comments[i] = client.Call(context.Background(), req).Comment
		}()
	}
	wg.Wait()

	for i, c := range comments {
		assert.Equal(t, fmt.Sprintf("b%d", i), c)
	}
	assert.Zero(t, bus.Stats().Handles)
}

func TestOutcome_Builders(t *testing.T) {
	out := beaconbus.Failed(bberrors.KindValidationFailed, "bad").
		WithChanges(map[string]any{"a": 1}).
		WithData(map[string]any{"b": 2})

	assert.False(t, out.Success)
	assert.Equal(t, "bad", out.Comment)
	assert.Equal(t, bberrors.KindValidationFailed, out.Failure)
	assert.Equal(t, 1, out.Changes["a"])
	assert.Equal(t, 2, out.Data["b"])
}

func TestReply_Accessors(t *testing.T) {
	r := beaconbus.ReplyOf(event.NewEnvelope(testCompletion, map[string]any{
		"complete": "yes",
		"comment":  "c",
		"tree":     map[any]any{"k": "v", 1: "dropped"},
	}))

	_, present := r.Complete()
	assert.False(t, present, "non-boolean complete counts as absent")
	assert.Equal(t, "c", r.Comment())
	assert.Equal(t, map[string]any{"k": "v"}, r.Map("tree"))
	assert.Nil(t, r.Map("missing"))
	assert.Empty(t, beaconbus.ReplyOf(nil).Payload())
}
