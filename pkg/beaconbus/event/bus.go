package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Transport opens scoped handles onto an event bus.
type Transport interface {
	// Connect opens a handle for scope. The handle is subscribed before
	// Connect returns, so nothing published afterwards can be missed.
	// Returns ErrUnavailable (possibly wrapped) when the bus cannot be reached.
	Connect(ctx context.Context, scope string) (Bus, error)
}

// Bus is a scoped handle onto the event bus.
type Bus interface {
	// Publish fires env to every other handle and subscriber. The bool
	// reports whether the bus accepted the envelope.
	Publish(ctx context.Context, env *Envelope) (bool, error)

	// WaitFor blocks until an envelope with exactly tag arrives or the
	// timeout elapses. Non-matching envelopes remain queued.
	WaitFor(ctx context.Context, tag Tag, timeout time.Duration, opts ...WaitOption) (*Envelope, error)

	// Receive returns the next queued envelope regardless of tag.
	Receive(ctx context.Context) (*Envelope, error)

	// Close releases the handle. Close is idempotent.
	Close() error
}

// Subscription represents an active handler subscription.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()

	// Pause temporarily stops delivery.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the mailbox size per handle and the channel buffer
	// size per handler subscription.
	// Default: 256
	BufferSize int

	// MaxSubscribers limits handles plus handler subscriptions.
	// Default: 0 (unlimited)
	MaxSubscribers int

	// DeduplicateTTL enables deduplication by envelope ID with the given TTL.
	// Default: 0 (disabled)
	DeduplicateTTL time.Duration

	// OnDrop is called when a handle's mailbox overflows and drops its
	// oldest envelope.
	OnDrop func(env *Envelope, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(env *Envelope, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: DefaultMailboxSize,
}

// BusStats is a point-in-time view of bus membership.
type BusStats struct {
	Handles       int
	Subscriptions int
}

// LocalBus is an in-memory event bus. It is both a Transport for scoped
// handles and a host for handler subscriptions; both see every envelope.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	handles       map[string]*handle
	subscriptions map[string]*subscription
	byTag         map[Tag]map[string]*subscription // tag -> subscription ID -> subscription
	wildcards     map[string]*subscription         // subscriptions for all tags

	// Deduplication cache
	dedupeMu    sync.Mutex
	dedupeCache map[string]time.Time

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}

	bus := &LocalBus{
		config:        config,
		handles:       make(map[string]*handle),
		subscriptions: make(map[string]*subscription),
		byTag:         make(map[Tag]map[string]*subscription),
		wildcards:     make(map[string]*subscription),
		closeCh:       make(chan struct{}),
	}

	if config.DeduplicateTTL > 0 {
		bus.dedupeCache = make(map[string]time.Time)
		bus.wg.Add(1)
		go bus.cleanupDedupe()
	}

	return bus
}

// Connect implements Transport.
func (b *LocalBus) Connect(ctx context.Context, scope string) (Bus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, ErrClosed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.atCapacity() {
		return nil, fmt.Errorf("%w: subscriber limit %d reached", ErrUnavailable, b.config.MaxSubscribers)
	}

	h := &handle{
		id:    b.newID("handle"),
		scope: scope,
		bus:   b,
	}
	h.Mailbox = NewMailbox(b.config.BufferSize, func(env *Envelope) {
		if b.config.OnDrop != nil {
			b.config.OnDrop(env, h.id)
		}
	})
	b.handles[h.id] = h

	return h, nil
}

// Publish sends env to every handle and matching subscription and returns
// how many received it.
func (b *LocalBus) Publish(ctx context.Context, env *Envelope) (int, error) {
	return b.dispatch(ctx, env, "")
}

// Subscribe creates a handler subscription for specific tags.
// Returns nil if the bus is closed or at capacity.
func (b *LocalBus) Subscribe(tags []Tag, handler Handler) Subscription {
	sub := b.subscribe(tags, handler)
	if sub == nil {
		return nil
	}
	return sub
}

// SubscribeAll subscribes handler to all tags.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.Subscribe(nil, handler)
}

// Stats reports current membership.
func (b *LocalBus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		Handles:       len(b.handles),
		Subscriptions: len(b.subscriptions),
	}
}

// Close shuts down the bus, closes every handle and stops every
// subscription goroutine.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	close(b.closeCh)

	b.mu.Lock()
	for _, sub := range b.subscriptions {
		sub.stop()
	}
	for _, h := range b.handles {
		h.Mailbox.Close()
	}
	b.subscriptions = make(map[string]*subscription)
	b.byTag = make(map[Tag]map[string]*subscription)
	b.wildcards = make(map[string]*subscription)
	b.handles = make(map[string]*handle)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// dispatch delivers env to everyone except origin.
func (b *LocalBus) dispatch(ctx context.Context, env *Envelope, origin string) (int, error) {
	if env == nil {
		return 0, fmt.Errorf("publish: nil envelope")
	}
	if b.closed.Load() {
		return 0, &EventError{Envelope: env, Message: "bus is closed", Err: ErrClosed}
	}
	if err := env.Tag.Validate(); err != nil {
		return 0, &EventError{Envelope: env, Message: "invalid tag", Err: err}
	}

	if b.config.DeduplicateTTL > 0 && !b.recordEnvelope(env) {
		return 0, nil // Silently skip duplicates
	}

	b.mu.RLock()
	handles := make([]*handle, 0, len(b.handles))
	for id, h := range b.handles {
		if id != origin {
			handles = append(handles, h)
		}
	}
	subs := b.matchingSubscriptions(env.Tag, origin)
	b.mu.RUnlock()

	delivered := 0
	for _, h := range handles {
		if h.Deliver(env) {
			delivered++
		}
	}

	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}

		select {
		case sub.envelopes <- env:
			delivered++
		case <-sub.done:
		case <-ctx.Done():
			return delivered, ctx.Err()
		case <-b.closeCh:
			return delivered, &EventError{Envelope: env, Message: "bus closed during publish", Err: ErrClosed}
		}
	}

	return delivered, nil
}

func (b *LocalBus) subscribe(tags []Tag, handler Handler) *subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.atCapacity() {
		return nil
	}

	sub := &subscription{
		id:        b.newID("sub"),
		tags:      tags,
		handler:   handler,
		envelopes: make(chan *Envelope, b.config.BufferSize),
		done:      make(chan struct{}),
		bus:       b,
	}

	b.subscriptions[sub.id] = sub

	if len(tags) == 0 {
		b.wildcards[sub.id] = sub
	} else {
		for _, t := range tags {
			if b.byTag[t] == nil {
				b.byTag[t] = make(map[string]*subscription)
			}
			b.byTag[t][sub.id] = sub
		}
	}

	b.wg.Add(1)
	go sub.process()

	return sub
}

// matchingSubscriptions returns all subscriptions for tag except origin.
// Caller holds b.mu.
func (b *LocalBus) matchingSubscriptions(tag Tag, origin string) []*subscription {
	subs := make([]*subscription, 0, len(b.byTag[tag])+len(b.wildcards))
	for id, sub := range b.byTag[tag] {
		if id != origin {
			subs = append(subs, sub)
		}
	}
	for id, sub := range b.wildcards {
		if id != origin {
			subs = append(subs, sub)
		}
	}
	return subs
}

// atCapacity reports whether the subscriber limit is reached. Caller holds b.mu.
func (b *LocalBus) atCapacity() bool {
	return b.config.MaxSubscribers > 0 &&
		len(b.subscriptions)+len(b.handles) >= b.config.MaxSubscribers
}

func (b *LocalBus) newID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, b.nextID.Add(1))
}

func (b *LocalBus) removeHandle(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles, id)
}

// Deduplication helpers

// recordEnvelope returns false if env was already seen within the TTL.
func (b *LocalBus) recordEnvelope(env *Envelope) bool {
	b.dedupeMu.Lock()
	defer b.dedupeMu.Unlock()

	if _, seen := b.dedupeCache[env.ID]; seen {
		return false
	}
	b.dedupeCache[env.ID] = time.Now()
	return true
}

func (b *LocalBus) cleanupDedupe() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.DeduplicateTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.dedupeMu.Lock()
			cutoff := time.Now().Add(-b.config.DeduplicateTTL)
			for id, ts := range b.dedupeCache {
				if ts.Before(cutoff) {
					delete(b.dedupeCache, id)
				}
			}
			b.dedupeMu.Unlock()

		case <-b.closeCh:
			return
		}
	}
}

// handle is a scoped listener on a LocalBus.
type handle struct {
	*Mailbox

	id    string
	scope string
	bus   *LocalBus
	once  sync.Once
}

// ID returns the handle's bus-unique identifier.
func (h *handle) ID() string {
	return h.id
}

// Scope returns the scope the handle was opened for.
func (h *handle) Scope() string {
	return h.scope
}

// Publish implements Bus. The handle's own mailbox never receives env.
func (h *handle) Publish(ctx context.Context, env *Envelope) (bool, error) {
	select {
	case <-h.Done():
		return false, ErrClosed
	default:
	}
	if env != nil && env.Source == "" {
		env = env.Clone()
		env.Source = h.scope
	}
	if _, err := h.bus.dispatch(ctx, env, h.id); err != nil {
		return false, err
	}
	return true, nil
}

// Close implements Bus.
func (h *handle) Close() error {
	h.once.Do(func() {
		h.bus.removeHandle(h.id)
		h.Mailbox.Close()
	})
	return nil
}

// subscription is a handler subscription processed on its own goroutine.
type subscription struct {
	id        string
	tags      []Tag // empty = all tags
	handler   Handler
	envelopes chan *Envelope
	paused    atomic.Bool
	done      chan struct{}
	stopOnce  sync.Once
	bus       *LocalBus
}

// process handles envelopes for a subscription and publishes whatever the
// handler derives from them.
func (s *subscription) process() {
	defer s.bus.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case env := <-s.envelopes:
			if s.paused.Load() {
				continue
			}

			derived, err := s.handler.Handle(ctx, env)
			if err != nil {
				if s.bus.config.OnError != nil {
					s.bus.config.OnError(env, s.id, err)
				}
				continue
			}
			for _, out := range derived {
				if _, err := s.bus.dispatch(ctx, out, s.id); err != nil && s.bus.config.OnError != nil {
					s.bus.config.OnError(out, s.id, err)
				}
			}

		case <-s.done:
			return
		}
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subscriptions, s.id)
	delete(s.bus.wildcards, s.id)

	for _, t := range s.tags {
		if tagSubs, ok := s.bus.byTag[t]; ok {
			delete(tagSubs, s.id)
		}
	}

	s.stop()
}

// Pause temporarily stops delivery.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *subscription) IsPaused() bool {
	return s.paused.Load()
}
