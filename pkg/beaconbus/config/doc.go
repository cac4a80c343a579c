/*
Package config provides type-safe configuration extraction and the
Settings that clients, beacon modules and the manager are built from.

# Basic Usage

Config wraps a map[string]any and returns defaults for missing keys or
mismatched types:

	cfg := config.New(map[string]any{
	    "timeout": 30,
	    "test":    true,
	})

	timeout := cfg.Duration("timeout", time.Minute) // 30s
	test := cfg.Bool("test", false)                 // true

# Files

FromFile picks a parser by extension:
  - .yaml, .yml, .conf: gopkg.in/yaml.v3
  - .json, .jsonc: comments stripped, then encoding/json
  - .toml: github.com/BurntSushi/toml

# Settings

LoadSettings reads a file and overlays it on DefaultSettings. There is no
package-level configuration; pass Settings to constructors explicitly:

	settings, err := config.LoadSettings("/etc/beaconbus/minion.yaml")
	if err != nil {
	    return err
	}
	client := beaconbus.NewClient(transport, beaconbus.WithSettings(settings))
*/
package config
