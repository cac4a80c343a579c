package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/beacons"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/store"
)

// Manager answers beacon requests for one minion. It owns the runtime
// beacon configuration, persists it through a store.Store and publishes a
// completion event for every request it handles.
type Manager struct {
	mu      sync.RWMutex
	beacons map[string]any // runtime configuration, including "enabled"
	pillar  map[string]any // read-only

	minionID string
	store    store.Store
	catalog  *Catalog
	logger   *slog.Logger

	registry *event.TagRegistry
	dlq      *event.InMemoryDLQ
	router   *event.DefaultRouter
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the persistence backend.
// Default: store.NewMemoryStore()
func WithStore(s store.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithCatalog sets the available beacon modules.
// Default: DefaultCatalog()
func WithCatalog(c *Catalog) Option {
	return func(m *Manager) {
		m.catalog = c
	}
}

// WithPillar sets beacons configured in pillar. They are listed but
// cannot be changed.
func WithPillar(pillar map[string]any) Option {
	return func(m *Manager) {
		m.pillar = maps.Clone(pillar)
	}
}

// WithMinionID scopes persisted beacons.
// Default: "minion"
func WithMinionID(id string) Option {
	return func(m *Manager) {
		m.minionID = id
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a manager and loads any persisted beacons.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		beacons:  make(map[string]any),
		pillar:   make(map[string]any),
		minionID: "minion",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = store.NewMemoryStore()
	}
	if m.catalog == nil {
		m.catalog = DefaultCatalog()
	}
	if m.pillar == nil {
		m.pillar = make(map[string]any)
	}

	if err := m.load(); err != nil {
		return nil, err
	}

	m.registry = requestRegistry()
	m.dlq = event.NewInMemoryDLQ(event.DefaultDLQConfig)
	m.router = event.NewRouter(event.RouterConfig{
		Registry:          m.registry,
		ValidateEnvelopes: true,
		DLQ:               m.dlq,
		RetryConfig:       event.DefaultRouterConfig.RetryConfig,
		OnError: func(env *event.Envelope, handler string, err error) {
			m.logger.Warn("beacon request failed",
				slog.String("envelope_id", env.ID),
				slog.String("handler", handler),
				slog.String("error", err.Error()))
		},
	})
	m.router.Use(event.RecoveryMiddleware())
	m.router.Use(event.LoggingMiddleware(m.logger))
	m.router.Use(event.CorrelationMiddleware())
	m.router.Register(event.TagHandler([]event.Tag{beacons.RequestTag}, m.handle),
		event.WithHandlerName("beacon-manager"))

	return m, nil
}

// requestRegistry describes the manage_beacons payload.
func requestRegistry() *event.TagRegistry {
	r := event.NewTagRegistry()
	r.MustRegister(&event.TagSchema{
		Tag:         beacons.RequestTag,
		Description: "Beacon management request",
		Required:    []string{"func"},
		Validator: func(env *event.Envelope) error {
			op, _ := env.Data["func"].(string)
			if beacons.CompletionTag(beacons.Operation(op)) == "" {
				return fmt.Errorf("unknown func %q", op)
			}
			return nil
		},
	})
	return r
}

// Attach subscribes the manager to bus. Unsubscribe the returned
// subscription to detach.
func (m *Manager) Attach(bus *event.LocalBus) event.Subscription {
	return bus.Subscribe(m.router.Handles(), m.router)
}

// Handle routes one request envelope and returns the completion envelope.
func (m *Manager) Handle(ctx context.Context, env *event.Envelope) ([]*event.Envelope, error) {
	return m.router.Route(ctx, env)
}

// DeadLetters returns requests whose handling failed.
func (m *Manager) DeadLetters() event.DeadLetterQueue {
	return m.dlq
}

// Beacons returns a snapshot of the runtime configuration.
func (m *Manager) Beacons() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.beacons)
}

// load reads persisted beacons in the order they were first saved.
func (m *Manager) load() error {
	infos, err := m.store.List(m.minionID)
	if err != nil {
		return fmt.Errorf("list persisted beacons: %w", err)
	}
	for _, info := range infos {
		raw, err := m.store.Load(m.minionID, info.Name)
		if err != nil {
			return fmt.Errorf("load beacon %s: %w", info.Name, err)
		}
		var config any
		if err := yaml.Unmarshal(raw, &config); err != nil {
			return fmt.Errorf("decode beacon %s: %w", info.Name, err)
		}
		m.beacons[info.Name] = beacons.Normalize(config)
	}
	return nil
}

// persist writes one entry. Callers hold m.mu.
func (m *Manager) persist(name string) error {
	config, ok := m.beacons[name]
	if !ok {
		return m.store.Delete(m.minionID, name)
	}
	raw, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode beacon %s: %w", name, err)
	}
	return m.store.Save(m.minionID, name, raw)
}

// Replace swaps the runtime configuration for cfg and persists it. When
// persisting fails the previous configuration is restored in memory and
// in the store.
func (m *Manager) Replace(cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]any, len(cfg))
	for name, config := range cfg {
		next[name] = beacons.Normalize(config)
	}

	previous := m.beacons
	m.beacons = next
	if err := m.persistAll(previous); err != nil {
		m.beacons = previous
		if restoreErr := m.persistAll(next); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("restore persisted beacons: %w", restoreErr))
		}
		return err
	}
	return nil
}

// persistAll writes every runtime entry and removes the entries of stale
// that are no longer configured. Callers hold m.mu.
func (m *Manager) persistAll(stale map[string]any) error {
	for _, name := range slices.Sorted(maps.Keys(m.beacons)) {
		if err := m.persist(name); err != nil {
			return fmt.Errorf("persist beacon %s: %w", name, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(stale)) {
		if _, ok := m.beacons[name]; ok {
			continue
		}
		if err := m.store.Delete(m.minionID, name); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove beacon %s: %w", name, err)
		}
	}
	return nil
}
