package manager

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// request is a decoded manage_beacons payload.
type request struct {
	op            beacons.Operation
	name          string
	data          any
	includePillar bool
	includeOpts   bool
}

func decodeRequest(env *event.Envelope) request {
	req := request{includePillar: true, includeOpts: true}
	req.op = beacons.Operation(stringField(env, "func"))
	req.name = stringField(env, "name")
	req.data, _ = env.Get("beacon_data")
	if v, ok := env.Get("include_pillar"); ok {
		if b, isBool := v.(bool); isBool {
			req.includePillar = b
		}
	}
	if v, ok := env.Get("include_opts"); ok {
		if b, isBool := v.(bool); isBool {
			req.includeOpts = b
		}
	}
	return req
}

func stringField(env *event.Envelope, key string) string {
	v, _ := env.Get(key)
	s, _ := v.(string)
	return s
}

// handle answers one request with its completion event.
func (m *Manager) handle(ctx context.Context, env *event.Envelope) ([]*event.Envelope, error) {
	req := decodeRequest(env)
	tag := beacons.CompletionTag(req.op)
	if tag == "" {
		return nil, &event.EventError{Envelope: env, Handler: "beacon-manager", Message: fmt.Sprintf("unknown func %q", req.op)}
	}

	var payload map[string]any
	switch req.op {
	case beacons.OpList:
		payload = m.list(req)
	case beacons.OpListAvailable:
		payload = map[string]any{"complete": true, "beacons": m.catalog.Names()}
	case beacons.OpValidate:
		valid, comment := m.catalog.Validate(req.name, req.data)
		payload = map[string]any{"valid": valid, "vcomment": comment}
	case beacons.OpAdd:
		payload = m.add(req)
	case beacons.OpModify:
		payload = m.modify(req)
	case beacons.OpDelete:
		payload = m.delete(req)
	case beacons.OpEnable:
		payload = m.setGlobal(true)
	case beacons.OpDisable:
		payload = m.setGlobal(false)
	case beacons.OpEnableBeacon:
		payload = m.setBeacon(req.name, true)
	case beacons.OpDisableBeacon:
		payload = m.setBeacon(req.name, false)
	case beacons.OpReset:
		payload = m.reset()
	}

	m.logger.DebugContext(ctx, "beacon request handled",
		slog.String("func", string(req.op)),
		slog.String("name", req.name),
		slog.Any("complete", payload["complete"]))

	return []*event.Envelope{event.NewReply(env, tag, payload, event.WithSource("beacon-manager"))}, nil
}

func (m *Manager) list(req request) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any)
	if req.includeOpts {
		maps.Copy(out, m.beacons)
	}
	if req.includePillar {
		maps.Copy(out, m.pillar)
	}
	return map[string]any{"complete": true, "beacons": out}
}

// completed reports the runtime configuration after a mutation. Callers
// hold m.mu.
func (m *Manager) completed(comment string) map[string]any {
	return map[string]any{
		"complete": true,
		"comment":  comment,
		"beacons":  maps.Clone(m.beacons),
	}
}

func rejected(comment string) map[string]any {
	return map[string]any{"complete": false, "comment": comment}
}

func (m *Manager) inPillar(name string) bool {
	_, ok := m.pillar[name]
	return ok
}

func (m *Manager) add(req request) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inPillar(req.name) {
		return rejected(fmt.Sprintf("Cannot update beacon item %s, it is configured in pillar.", req.name))
	}
	comment := fmt.Sprintf("Added beacon item %s", req.name)
	if _, exists := m.beacons[req.name]; exists {
		comment = fmt.Sprintf("Updating settings for beacon item: %s", req.name)
	}
	return m.setEntry(req.name, beacons.Normalize(req.data), comment)
}

func (m *Manager) modify(req request) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inPillar(req.name) {
		return rejected(fmt.Sprintf("Cannot update beacon item %s, it is configured in pillar.", req.name))
	}
	if _, exists := m.beacons[req.name]; !exists {
		return rejected(fmt.Sprintf("Beacon item %s not found.", req.name))
	}
	return m.setEntry(req.name, beacons.Normalize(req.data), fmt.Sprintf("Updating settings for beacon item: %s", req.name))
}

func (m *Manager) delete(req request) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inPillar(req.name) {
		return rejected(fmt.Sprintf("Cannot delete beacon item %s, it is configured in pillar.", req.name))
	}
	if _, exists := m.beacons[req.name]; !exists {
		return m.completed(fmt.Sprintf("Beacon item %s not found.", req.name))
	}
	delete(m.beacons, req.name)
	if err := m.persist(req.name); err != nil {
		return rejected(fmt.Sprintf("Unable to persist beacon item %s: %v", req.name, err))
	}
	return m.completed(fmt.Sprintf("Deleting beacon item: %s", req.name))
}

func (m *Manager) setGlobal(enabled bool) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	comment := "Disabled beacons"
	if enabled {
		comment = "Enabled beacons"
	}
	return m.setEntry("enabled", enabled, comment)
}

func (m *Manager) setBeacon(name string, enabled bool) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inPillar(name) {
		return rejected(fmt.Sprintf("Cannot modify enable/disable state of beacon item %s, it is configured in pillar.", name))
	}
	config, exists := m.beacons[name]
	if !exists {
		return rejected(fmt.Sprintf("Beacon item %s not found.", name))
	}

	comment := fmt.Sprintf("Disabled beacon item %s", name)
	if enabled {
		comment = fmt.Sprintf("Enabled beacon item %s", name)
	}
	return m.setEntry(name, withEnabled(config, enabled), comment)
}

func (m *Manager) reset() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteAll(m.minionID); err != nil {
		return rejected(fmt.Sprintf("Unable to reset beacons: %v", err))
	}
	m.beacons = make(map[string]any)
	return m.completed("Beacon Reset")
}

// setEntry sets and persists one entry. Callers hold m.mu.
func (m *Manager) setEntry(name string, config any, comment string) map[string]any {
	previous, had := m.beacons[name]
	m.beacons[name] = config
	if err := m.persist(name); err != nil {
		if had {
			m.beacons[name] = previous
		} else {
			delete(m.beacons, name)
		}
		return rejected(fmt.Sprintf("Unable to persist beacon item %s: %v", name, err))
	}
	return m.completed(comment)
}

// withEnabled returns config with its enabled flag set. In a list of
// mappings the entry already holding the flag is replaced, otherwise a
// new entry is appended.
func withEnabled(config any, enabled bool) any {
	switch c := beacons.Normalize(config).(type) {
	case []any:
		out := make([]any, 0, len(c)+1)
		found := false
		for _, item := range c {
			if mapping, ok := item.(map[string]any); ok {
				if _, has := mapping["enabled"]; has {
					mapping = maps.Clone(mapping)
					mapping["enabled"] = enabled
					found = true
				}
				item = mapping
			}
			out = append(out, item)
		}
		if !found {
			out = append(out, map[string]any{"enabled": enabled})
		}
		return out
	case map[string]any:
		out := maps.Clone(c)
		out["enabled"] = enabled
		return out
	}
	return []any{map[string]any{"enabled": enabled}}
}
