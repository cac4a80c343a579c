package beacons

import (
	"fmt"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
)

// Each operation decides success from its completion payload with its own
// variant below. The client has already turned a missing reply or an
// explicit complete=false into a failure before any of these run.

// interpreterFor returns the reply check for op.
func interpreterFor(op Operation, name string, data any) beaconbus.Interpreter {
	switch op {
	case OpList:
		return listResult{}
	case OpListAvailable:
		return availableResult{}
	case OpValidate:
		return validationResult{}
	case OpAdd:
		return addResult{name: name, data: data}
	case OpModify:
		return modifyResult{name: name, data: data}
	case OpDelete:
		return deleteResult{name: name}
	case OpEnable:
		return globalToggleResult{enabled: true}
	case OpDisable:
		return globalToggleResult{enabled: false}
	case OpEnableBeacon:
		return beaconToggleResult{name: name, enabled: true}
	case OpDisableBeacon:
		return beaconToggleResult{name: name, enabled: false}
	case OpReset:
		return resetResult{}
	}
	panic(fmt.Sprintf("beacons: no interpreter for operation %q", op))
}

// listed returns the beacons entry of a reply, or an empty mapping.
func listed(r beaconbus.Reply) map[string]any {
	if m := r.Map("beacons"); m != nil {
		return m
	}
	return map[string]any{}
}

// failWith prefers the reply's own comment over fallback.
func failWith(r beaconbus.Reply, fallback string) beaconbus.Outcome {
	if c := r.Comment(); c != "" {
		return beaconbus.Failed(bberrors.KindRemoteRejected, c)
	}
	return beaconbus.Failed(bberrors.KindRemoteRejected, fallback)
}

type listResult struct{}

func (listResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	return beaconbus.Succeeded("").WithData(map[string]any{"beacons": listed(r)})
}

type availableResult struct{}

func (availableResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	v, ok := r.Value("beacons")
	if !ok || v == nil {
		v = map[string]any{}
	}
	return beaconbus.Succeeded("").WithData(map[string]any{"beacons": v})
}

type validationResult struct{}

func (validationResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	valid, _ := r.Bool("valid")
	vcomment := r.String("vcomment")
	if !valid {
		return beaconbus.Failed(bberrors.KindValidationFailed, vcomment).
			WithData(map[string]any{"valid": false})
	}
	return beaconbus.Succeeded(vcomment).WithData(map[string]any{"valid": true})
}

type addResult struct {
	name string
	data any
}

func (a addResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	beacons := listed(r)
	if current, ok := beacons[a.name]; ok && contains(current, a.data) {
		return beaconbus.Succeeded(fmt.Sprintf("Added beacon: %s.", a.name))
	}
	return failWith(r, fmt.Sprintf("Failed to add beacon %s.", a.name))
}

type modifyResult struct {
	name string
	data any
}

func (m modifyResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	beacons := listed(r)
	if current, ok := beacons[m.name]; ok && Equal(current, m.data) {
		return beaconbus.Succeeded(fmt.Sprintf("Modified beacon: %s.", m.name))
	}
	return failWith(r, fmt.Sprintf("Failed to modify beacon %s.", m.name))
}

type deleteResult struct {
	name string
}

func (d deleteResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	if _, ok := listed(r)[d.name]; !ok {
		return beaconbus.Succeeded(fmt.Sprintf("Deleted beacon: %s.", d.name))
	}
	return failWith(r, fmt.Sprintf("Failed to delete beacon %s.", d.name))
}

type globalToggleResult struct {
	enabled bool
}

func (g globalToggleResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	state, ok := listed(r)["enabled"].(bool)
	switch {
	case ok && state == g.enabled && g.enabled:
		return beaconbus.Succeeded("Enabled beacons on minion.")
	case ok && state == g.enabled:
		return beaconbus.Succeeded("Disabled beacons on minion.")
	case g.enabled:
		return beaconbus.Failed(bberrors.KindRemoteRejected, "Failed to enable beacons on minion.")
	default:
		return beaconbus.Failed(bberrors.KindRemoteRejected, "Failed to disable beacons on minion.")
	}
}

type beaconToggleResult struct {
	name    string
	enabled bool
}

func (b beaconToggleResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	config := Merge(listed(r)[b.name])
	state, ok := config["enabled"].(bool)
	switch {
	case ok && state == b.enabled && b.enabled:
		return beaconbus.Succeeded(fmt.Sprintf("Enabled beacon %s on minion.", b.name))
	case ok && state == b.enabled:
		return beaconbus.Succeeded(fmt.Sprintf("Disabled beacon %s on minion.", b.name))
	case b.enabled:
		return beaconbus.Failed(bberrors.KindRemoteRejected, fmt.Sprintf("Failed to enable beacon %s on minion.", b.name))
	default:
		return beaconbus.Failed(bberrors.KindRemoteRejected, fmt.Sprintf("Failed to disable beacon %s on minion.", b.name))
	}
}

type resetResult struct{}

func (resetResult) Interpret(r beaconbus.Reply) beaconbus.Outcome {
	if complete, _ := r.Complete(); complete {
		return beaconbus.Succeeded("Beacon configuration reset.")
	}
	return failWith(r, "Failed to reset beacon configuration.")
}
