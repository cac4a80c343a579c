package beacons

import (
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// RequestTag is the tag every beacon request is published under.
const RequestTag event.Tag = "manage_beacons"

// Operation is the func discriminator carried by a request.
type Operation string

// Operations understood by the beacon manager.
const (
	OpList          Operation = "list"
	OpListAvailable Operation = "list_available"
	OpValidate      Operation = "validate_beacon"
	OpAdd           Operation = "add"
	OpModify        Operation = "modify"
	OpDelete        Operation = "delete"
	OpEnable        Operation = "enable"
	OpDisable       Operation = "disable"
	OpEnableBeacon  Operation = "enable_beacon"
	OpDisableBeacon Operation = "disable_beacon"
	OpReset         Operation = "reset"
)

// Completion tags, one per operation.
const (
	ListComplete           event.Tag = "/salt/minion/minion_beacons_list_complete"
	ListAvailableComplete  event.Tag = "/salt/minion/minion_beacons_list_available_complete"
	ValidationComplete     event.Tag = "/salt/minion/minion_beacon_validation_complete"
	AddComplete            event.Tag = "/salt/minion/minion_beacon_add_complete"
	ModifyComplete         event.Tag = "/salt/minion/minion_beacon_modify_complete"
	DeleteComplete         event.Tag = "/salt/minion/minion_beacon_delete_complete"
	EnabledComplete        event.Tag = "/salt/minion/minion_beacons_enabled_complete"
	DisabledComplete       event.Tag = "/salt/minion/minion_beacons_disabled_complete"
	BeaconEnabledComplete  event.Tag = "/salt/minion/minion_beacon_enabled_complete"
	BeaconDisabledComplete event.Tag = "/salt/minion/minion_beacon_disabled_complete"
	ResetComplete          event.Tag = "/salt/minion/minion_beacon_reset_complete"
)

// CompletionTag returns the reply tag for op.
func CompletionTag(op Operation) event.Tag {
	return completions[op]
}

// Operations returns every operation in a stable order.
func Operations() []Operation {
	return []Operation{
		OpList, OpListAvailable, OpValidate, OpAdd, OpModify, OpDelete,
		OpEnable, OpDisable, OpEnableBeacon, OpDisableBeacon, OpReset,
	}
}

var completions = map[Operation]event.Tag{
	OpList:          ListComplete,
	OpListAvailable: ListAvailableComplete,
	OpValidate:      ValidationComplete,
	OpAdd:           AddComplete,
	OpModify:        ModifyComplete,
	OpDelete:        DeleteComplete,
	OpEnable:        EnabledComplete,
	OpDisable:       DisabledComplete,
	OpEnableBeacon:  BeaconEnabledComplete,
	OpDisableBeacon: BeaconDisabledComplete,
	OpReset:         ResetComplete,
}

// callSpec holds the fixed wording for an operation.
type callSpec struct {
	label string // degraded-mode label
	event string // timeout wording
}

var callSpecs = map[Operation]callSpec{
	OpList:          {label: "Beacon list", event: "beacons list"},
	OpListAvailable: {label: "Beacon list_available", event: "beacons list_available"},
	OpValidate:      {label: "Beacon validation", event: "beacon validation"},
	OpAdd:           {label: "Beacon add", event: "beacon add"},
	OpModify:        {label: "Beacon modify", event: "beacon modify"},
	OpDelete:        {label: "Beacon delete", event: "beacon delete"},
	OpEnable:        {label: "Beacons enable job", event: "beacon enabled"},
	OpDisable:       {label: "Beacons disable job", event: "beacon disabled"},
	OpEnableBeacon:  {label: "Beacon enable_beacon job", event: "beacon enabled"},
	OpDisableBeacon: {label: "Beacon disable_beacon job", event: "beacon disabled"},
	OpReset:         {label: "Beacon reset job", event: "beacon reset"},
}
