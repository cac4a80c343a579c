package beacons

import (
	"context"
	"fmt"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
)

// Enable turns on beacon processing for the minion.
func (m *Module) Enable(ctx context.Context, opts ...CallOption) beaconbus.Outcome {
	return m.toggleAll(ctx, OpEnable, "Beacons would be enabled.", opts)
}

// Disable turns off beacon processing for the minion.
func (m *Module) Disable(ctx context.Context, opts ...CallOption) beaconbus.Outcome {
	return m.toggleAll(ctx, OpDisable, "Beacons would be disabled.", opts)
}

func (m *Module) toggleAll(ctx context.Context, op Operation, dry string, opts []CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(dry)
	}
	return m.client.Call(ctx, m.request(op, cfg, nil, interpreterFor(op, "", nil)))
}

// EnableBeacon enables one configured beacon.
func (m *Module) EnableBeacon(ctx context.Context, name string, opts ...CallOption) beaconbus.Outcome {
	return m.toggleOne(ctx, OpEnableBeacon, name, fmt.Sprintf("Beacon %s would be enabled.", name), opts)
}

// DisableBeacon disables one configured beacon.
func (m *Module) DisableBeacon(ctx context.Context, name string, opts ...CallOption) beaconbus.Outcome {
	return m.toggleOne(ctx, OpDisableBeacon, name, fmt.Sprintf("Beacon %s would be disabled.", name), opts)
}

func (m *Module) toggleOne(ctx context.Context, op Operation, name, dry string, opts []CallOption) beaconbus.Outcome {
	if name == "" {
		return beaconbus.Failed(bberrors.KindValidationFailed, "Beacon name is required.")
	}

	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(dry)
	}

	current, out, ok := m.configured(ctx, cfg, op)
	if !ok {
		return out
	}
	if _, exists := current[name]; !exists {
		return beaconbus.Failed(bberrors.KindValidationFailed,
			fmt.Sprintf("Beacon %s is not currently configured.", name))
	}

	params := map[string]any{"name": name}
	return m.client.Call(ctx, m.request(op, cfg, params, interpreterFor(op, name, nil)))
}

// Reset discards the runtime beacon configuration and reloads it.
func (m *Module) Reset(ctx context.Context, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded("Beacons would be reset.")
	}
	return m.client.Call(ctx, m.request(OpReset, cfg, nil, interpreterFor(OpReset, "", nil)))
}
