package beacons

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
)

// Add configures beacon name with data, typically a list of mappings.
// A beacon that is already configured is left alone. The beacon module
// (name, or the beacon_module entry of data) must be available and the
// configuration must validate before the add request is sent.
func (m *Module) Add(ctx context.Context, name string, data any, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(fmt.Sprintf("Beacon: %s would be added.", name))
	}

	current, out, ok := m.configured(ctx, cfg, OpAdd)
	if !ok {
		return out
	}
	if _, exists := current[name]; exists {
		m.logger.Debug("beacon already configured", slog.String("name", name))
		return beaconbus.Succeeded(fmt.Sprintf("Beacon %s is already configured.", name))
	}

	module := ModuleName(name, data)
	available, out, ok := m.available(ctx, cfg, OpAdd)
	if !ok {
		return out
	}
	if !hasName(available, module) {
		return beaconbus.Failed(bberrors.KindValidationFailed,
			fmt.Sprintf("Beacon %q is not available.", module))
	}

	if v := m.validate(ctx, cfg, name, data); !v.Success {
		return invalid(v, name, "adding")
	}

	params := map[string]any{"name": name, "beacon_data": data}
	return m.client.Call(ctx, m.request(OpAdd, cfg, params, interpreterFor(OpAdd, name, data)))
}

// Modify replaces the configuration of an existing beacon. Identical
// configurations succeed without a modify request. Otherwise the outcome
// carries the unified diff under Changes["diff"].
func (m *Module) Modify(ctx context.Context, name string, data any, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(fmt.Sprintf("Beacon: %s would be modified.", name))
	}

	beacons, out, ok := m.configured(ctx, cfg, OpModify)
	if !ok {
		return out
	}
	current, exists := beacons[name]
	if !exists {
		return beaconbus.Failed(bberrors.KindValidationFailed,
			fmt.Sprintf("Beacon %s is not configured.", name))
	}

	if v := m.validate(ctx, cfg, name, data); !v.Success {
		return invalid(v, name, "modifying")
	}

	if Equal(current, data) {
		return beaconbus.Succeeded(fmt.Sprintf("Job %s in correct state", name))
	}

	diff, err := ConfigDiff(current, data)
	if err != nil {
		m.logger.Debug("diff failed", slog.String("name", name), slog.String("error", err.Error()))
	}

	params := map[string]any{"name": name, "beacon_data": data}
	result := m.client.Call(ctx, m.request(OpModify, cfg, params, interpreterFor(OpModify, name, data)))
	return result.WithChanges(map[string]any{"diff": diff})
}

// Delete removes beacon name. A beacon that is not configured is already
// in the desired state.
func (m *Module) Delete(ctx context.Context, name string, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(fmt.Sprintf("Beacon: %s would be deleted.", name))
	}

	current, out, ok := m.configured(ctx, cfg, OpDelete)
	if !ok {
		return out
	}
	if _, exists := current[name]; !exists {
		return beaconbus.Succeeded(fmt.Sprintf("Beacon %s is not configured.", name))
	}

	params := map[string]any{"name": name}
	return m.client.Call(ctx, m.request(OpDelete, cfg, params, interpreterFor(OpDelete, name, nil)))
}

// invalid rewrites a failed validation for the operation that needed it.
// Bus failures during validation pass through unchanged.
func invalid(v beaconbus.Outcome, name, verb string) beaconbus.Outcome {
	if v.Failure != bberrors.KindValidationFailed {
		return v
	}
	return beaconbus.Failed(bberrors.KindValidationFailed,
		fmt.Sprintf("Beacon %s configuration invalid, not %s.\n%s", name, verb, v.Comment))
}
