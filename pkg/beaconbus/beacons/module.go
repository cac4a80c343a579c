package beacons

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
)

// Module manages the beacons of one minion by exchanging requests with its
// beacon manager over the event bus. Every operation returns an Outcome;
// none of them return errors.
type Module struct {
	client *beaconbus.Client
	logger *slog.Logger
}

// New creates a beacon module calling through client.
func New(client *beaconbus.Client, opts ...Option) *Module {
	m := &Module{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// dryRun is evaluated before any bus traffic, pre-flight listings included.
func (m *Module) dryRun(cfg callConfig) bool {
	return cfg.test || m.client.Settings().Test
}

func (m *Module) request(op Operation, cfg callConfig, params map[string]any, interp beaconbus.Interpreter) beaconbus.Request {
	spec := callSpecs[op]
	return beaconbus.Request{
		Operation:   string(op),
		Label:       spec.label,
		Event:       spec.event,
		Params:      params,
		Completion:  CompletionTag(op),
		Timeout:     cfg.timeout,
		Interpreter: interp,
	}
}

func listParams(cfg callConfig) map[string]any {
	return map[string]any{
		"include_pillar": cfg.includePillar,
		"include_opts":   cfg.includeOpts,
	}
}

// List returns the configured beacons under Data["beacons"].
func (m *Module) List(ctx context.Context, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded("Beacons would be listed.")
	}
	return m.client.Call(ctx, m.request(OpList, cfg, listParams(cfg), listResult{}))
}

// ListAvailable returns the beacon modules the minion can run under
// Data["beacons"]. An empty reply yields an empty mapping.
func (m *Module) ListAvailable(ctx context.Context, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded("Available beacons would be listed.")
	}
	return m.client.Call(ctx, m.request(OpListAvailable, cfg, nil, availableResult{}))
}

// Validate asks the manager whether data is a valid configuration for
// name. A rejected configuration fails with the manager's comment.
func (m *Module) Validate(ctx context.Context, name string, data any, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(fmt.Sprintf("Beacon: %s configuration would be validated.", name))
	}
	return m.validate(ctx, cfg, name, data)
}

func (m *Module) validate(ctx context.Context, cfg callConfig, name string, data any) beaconbus.Outcome {
	params := map[string]any{"name": name, "beacon_data": data}
	return m.client.Call(ctx, m.request(OpValidate, cfg, params, validationResult{}))
}

// configured lists the beacons for a pre-flight check. Degraded-mode
// comments name the operation that needed the listing.
func (m *Module) configured(ctx context.Context, cfg callConfig, op Operation) (map[string]any, beaconbus.Outcome, bool) {
	req := m.request(OpList, cfg, listParams(cfg), listResult{})
	req.Label = callSpecs[op].label
	out := m.client.Call(ctx, req)
	if !out.Success {
		return nil, out, false
	}
	beacons, _ := out.Data["beacons"].(map[string]any)
	return beacons, out, true
}

func (m *Module) available(ctx context.Context, cfg callConfig, op Operation) (any, beaconbus.Outcome, bool) {
	req := m.request(OpListAvailable, cfg, nil, availableResult{})
	req.Label = callSpecs[op].label
	out := m.client.Call(ctx, req)
	if !out.Success {
		return nil, out, false
	}
	return out.Data["beacons"], out, true
}

// SavePath returns the file Save writes: beacons.conf in the include
// directory next to the minion configuration file.
func (m *Module) SavePath() string {
	s := m.client.Settings()
	return filepath.Join(filepath.Dir(s.ConfFile), filepath.Dir(s.DefaultInclude), "beacons.conf")
}

// Save writes every non-pillar beacon to SavePath as YAML. An empty
// listing writes an empty file.
func (m *Module) Save(ctx context.Context, opts ...CallOption) beaconbus.Outcome {
	cfg := applyCallOptions(opts)
	path := m.SavePath()
	if m.dryRun(cfg) {
		return beaconbus.Succeeded(fmt.Sprintf("Beacons would be saved to %s.", path))
	}

	cfg.includePillar = false
	beacons, out, ok := m.configured(ctx, cfg, OpList)
	if !ok {
		return out
	}

	var content []byte
	if len(beacons) > 0 {
		var err error
		content, err = yaml.Marshal(map[string]any{"beacons": beacons})
		if err != nil {
			return beaconbus.Failed(bberrors.KindOf(err), fmt.Sprintf("Unable to render beacons: %v", err))
		}
	}

	if err := writeFile(path, content); err != nil {
		m.logger.Warn("saving beacons failed", slog.String("path", path), slog.String("error", err.Error()))
		return beaconbus.Failed(bberrors.KindOf(err),
			fmt.Sprintf("Unable to write to beacons file at %s. Check permissions.", path))
	}
	return beaconbus.Succeeded(fmt.Sprintf("Beacons saved to %s.", path))
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create beacons directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write beacons file: %w", err)
	}
	return nil
}
