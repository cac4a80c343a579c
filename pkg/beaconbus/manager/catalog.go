package manager

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
)

// Validator checks the merged configuration of one beacon. The returned
// error's text is sent back as the validation comment.
type Validator func(config map[string]any) error

// Catalog holds the beacon modules a minion can run.
type Catalog struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{validators: make(map[string]Validator)}
}

// DefaultCatalog returns a catalog with the stock beacon modules.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register("ps", requires("ps", "processes"))
	c.Register("load", requires("load", "averages"))
	c.Register("diskusage", validateDiskusage)
	c.Register("service", requires("service", "services"))
	c.Register("status", nil)
	c.Register("inotify", requires("inotify", "files"))
	c.Register("memusage", requires("memusage", "percent"))
	return c
}

// Register adds or replaces a module. A nil validator accepts any list of
// mappings.
func (c *Catalog) Register(module string, v Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validators[module] = v
}

// Has reports whether module is available.
func (c *Catalog) Has(module string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.validators[module]
	return ok
}

// Names returns the available modules in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.validators))
	for name := range c.validators {
		names = append(names, name)
	}
	c.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Validate checks config for beacon name. The module is the config's
// beacon_module entry when present and name otherwise.
func (c *Catalog) Validate(name string, config any) (bool, string) {
	module := beacons.ModuleName(name, config)

	c.mu.RLock()
	v, ok := c.validators[module]
	c.mu.RUnlock()
	if !ok {
		return false, fmt.Sprintf("Beacon %s is not available.", module)
	}

	list, isList := beacons.Normalize(config).([]any)
	if !isList {
		return false, fmt.Sprintf("Configuration for %s beacon must be a list.", module)
	}
	for _, item := range list {
		if _, isMap := item.(map[string]any); !isMap {
			return false, fmt.Sprintf("Configuration for %s beacon must be a list of dictionaries.", module)
		}
	}

	if v != nil {
		if err := v(beacons.Merge(list)); err != nil {
			return false, err.Error()
		}
	}
	return true, "Valid beacon configuration"
}

// requires returns a validator demanding a mapping under key.
func requires(module, key string) Validator {
	return func(config map[string]any) error {
		v, ok := config[key]
		if !ok {
			return fmt.Errorf("Configuration for %s beacon requires %s.", module, key)
		}
		if _, isMap := v.(map[string]any); !isMap {
			if _, isList := v.([]any); !isList {
				return fmt.Errorf("Configuration for %s beacon %s must be a dictionary.", module, key)
			}
		}
		return nil
	}
}

// reserved keys are accepted by every beacon.
var reserved = []string{"interval", "disable_during_state_run", "beacon_module", "enabled"}

func validateDiskusage(config map[string]any) error {
	mounts := 0
	for mount, threshold := range config {
		if slices.Contains(reserved, mount) {
			continue
		}
		mounts++
		switch t := threshold.(type) {
		case string, int64, uint64, float64:
		default:
			return fmt.Errorf("Configuration for diskusage beacon: threshold for %s must be a percentage, got %v.", mount, t)
		}
	}
	if mounts == 0 {
		return errors.New("Configuration for diskusage beacon requires at least one mount point.")
	}
	return nil
}
