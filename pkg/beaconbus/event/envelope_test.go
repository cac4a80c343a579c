package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

func TestTag(t *testing.T) {
	assert.Error(t, event.Tag("").Validate())
	assert.Error(t, event.Tag("bad tag").Validate())
	assert.NoError(t, event.Tag("/salt/minion/minion_beacons_list_complete").Validate())
}

func TestNewEnvelope(t *testing.T) {
	env := event.NewEnvelope("manage_beacons", nil, event.WithSource("minion"))
	require.NotEmpty(t, env.ID)
	assert.NotNil(t, env.Data)
	assert.Equal(t, "minion", env.Source)
	assert.False(t, env.Timestamp.IsZero())

	reply := event.NewReply(event.NewEnvelope("req", nil, event.WithCorrelationID("c")), "resp", nil)
	assert.Equal(t, "c", reply.CorrelationID)
}

func TestEnvelopeClone(t *testing.T) {
	env := event.NewEnvelope("x", map[string]any{"k": "v"})
	clone := env.Clone()
	clone.Data["k"] = "changed"

	v, ok := env.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	var nilEnv *event.Envelope
	_, ok = nilEnv.Get("k")
	assert.False(t, ok)
}
