package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus"
)

// parseData decodes a DATA argument. Flow-style YAML covers both
// "[{interval: 10}]" and JSON.
func parseData(arg string) (any, error) {
	var data any
	if err := yaml.Unmarshal([]byte(arg), &data); err != nil {
		return nil, fmt.Errorf("parsing beacon data: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("parsing beacon data: empty")
	}
	return data, nil
}

// printOutcome writes out as YAML and maps failure onto errOutcomeFailed.
func printOutcome(w io.Writer, out beaconbus.Outcome) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("rendering outcome: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("rendering outcome: %w", err)
	}
	if !out.Success {
		return errOutcomeFailed
	}
	return nil
}
