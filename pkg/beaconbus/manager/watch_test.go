package manager_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/manager"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/store"
)

const beaconsConf = `beacons:
  ps:
    - processes:
        salt-master: stopped
  load:
    - averages:
        1m: [0.0, 2.0]
`

func TestManager_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacons.conf")
	require.NoError(t, os.WriteFile(path, []byte(beaconsConf), 0o644))

	m, err := manager.New()
	require.NoError(t, err)
	require.NoError(t, m.LoadFile(path))
	assert.Len(t, m.Beacons(), 2)

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, m.LoadFile(path))
	assert.Empty(t, m.Beacons())

	require.NoError(t, os.WriteFile(path, []byte("beacons: [unclosed"), 0o644))
	assert.Error(t, m.LoadFile(path))

	assert.Error(t, m.LoadFile(filepath.Join(t.TempDir(), "missing.conf")))
}

// failingStore refuses to save one beacon.
type failingStore struct {
	*store.MemoryStore
	refuse string
}

func (s *failingStore) Save(minionID, name string, data []byte) error {
	if name == s.refuse {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(minionID, name, data)
}

func TestManager_LoadFileKeepsPreviousOnPersistFailure(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore()}
	m, err := manager.New(manager.WithStore(st))
	require.NoError(t, err)

	previous := map[string]any{
		"load": []any{map[string]any{"averages": map[string]any{"1m": []any{0.0, 2.0}}}},
	}
	require.NoError(t, m.Replace(previous))

	st.refuse = "ps"
	path := filepath.Join(t.TempDir(), "beacons.conf")
	require.NoError(t, os.WriteFile(path, []byte(`beacons:
  diskusage:
    - /: 63%
  ps:
    - processes:
        salt-master: stopped
`), 0o644))
	assert.ErrorContains(t, m.LoadFile(path), "disk full")

	got := m.Beacons()
	assert.Len(t, got, 1)
	assert.True(t, beacons.Equal(previous["load"], got["load"]))

	infos, err := st.List("minion")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "load", infos[0].Name)

	restarted, err := manager.New(manager.WithStore(st))
	require.NoError(t, err)
	assert.True(t, beacons.Equal(previous, restarted.Beacons()))
}

func TestManager_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacons.conf")
	require.NoError(t, os.WriteFile(path, []byte("beacons:\n  status: []\n"), 0o644))

	m, err := manager.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx, path) }()

	assert.Eventually(t, func() bool {
		_, ok := m.Beacons()["status"]
		return ok
	}, 2*time.Second, 10*time.Millisecond, "initial load")

	require.NoError(t, os.WriteFile(path, []byte(beaconsConf), 0o644))
	assert.Eventually(t, func() bool {
		b := m.Beacons()
		_, hasPS := b["ps"]
		_, hasStatus := b["status"]
		return hasPS && !hasStatus
	}, 2*time.Second, 10*time.Millisecond, "reload after write")

	cancel()
	require.NoError(t, <-done)
}
