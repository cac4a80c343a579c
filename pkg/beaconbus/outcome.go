package beaconbus

import (
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
)

// Outcome is the status record every call returns. Failures are data:
// Success is false, Comment says why and Failure names the kind.
type Outcome struct {
	Success bool           `yaml:"success" json:"success"`
	Comment string         `yaml:"comment,omitempty" json:"comment,omitempty"`
	Changes map[string]any `yaml:"changes,omitempty" json:"changes,omitempty"`
	Data    map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
	Failure bberrors.Kind  `yaml:"-" json:"-"`
}

// Succeeded returns a successful outcome.
func Succeeded(comment string) Outcome {
	return Outcome{Success: true, Comment: comment}
}

// Failed returns a failed outcome of the given kind.
func Failed(kind bberrors.Kind, comment string) Outcome {
	return Outcome{Comment: comment, Failure: kind}
}

// WithChanges returns a copy carrying changes.
func (o Outcome) WithChanges(changes map[string]any) Outcome {
	o.Changes = changes
	return o
}

// WithData returns a copy carrying data.
func (o Outcome) WithData(data map[string]any) Outcome {
	o.Data = data
	return o
}
