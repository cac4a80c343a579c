package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// beaconsFile is the document Save writes and LoadFile reads.
type beaconsFile struct {
	Beacons map[string]any `yaml:"beacons"`
}

// LoadFile replaces the runtime configuration with the beacons in a
// beacons.conf YAML file. An empty file clears the configuration.
func (m *Manager) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read beacons file: %w", err)
	}
	var doc beaconsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse beacons file %s: %w", path, err)
	}
	if err := m.Replace(doc.Beacons); err != nil {
		return err
	}
	m.logger.Info("beacons loaded", slog.String("path", path), slog.Int("count", len(doc.Beacons)))
	return nil
}

// watchDebounce batches the bursts of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// Watch reloads path whenever it is written or recreated, until ctx is
// done. The containing directory is watched so replacing the file by
// rename is seen too. Reload failures are logged and the previous
// configuration is kept.
func (m *Manager) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := m.LoadFile(path); err != nil {
			m.logger.Warn("initial beacons load failed", slog.String("error", err.Error()))
		}
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			pending = time.After(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				pending = time.After(watchDebounce)
			}
			m.logger.Warn("beacons watcher error", slog.String("error", err.Error()))

		case <-pending:
			pending = nil
			if err := m.LoadFile(path); err != nil {
				m.logger.Warn("reloading beacons failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		}
	}
}
