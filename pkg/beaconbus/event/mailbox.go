package event

import (
	"context"
	"sync"
	"time"
)

// DefaultMailboxSize is the number of envelopes a handle buffers.
const DefaultMailboxSize = 256

// WaitOption narrows which envelopes satisfy a wait.
type WaitOption func(*waitConfig)

type waitConfig struct {
	match func(*Envelope) bool
}

// MatchCorrelation accepts envelopes whose correlation ID equals id.
// Unless strict, envelopes without a correlation ID are accepted too, so
// responders that do not echo IDs keep working.
func MatchCorrelation(id string, strict bool) WaitOption {
	return func(c *waitConfig) {
		if id == "" {
			return
		}
		c.match = func(env *Envelope) bool {
			if env.CorrelationID == "" {
				return !strict
			}
			return env.CorrelationID == id
		}
	}
}

// Mailbox is the bounded FIFO behind a bus handle.
//
// Envelopes are kept in delivery order. Take removes the first envelope
// that matches and leaves every other envelope queued for later waits.
// When the mailbox is full the oldest envelope is dropped.
type Mailbox struct {
	mu     sync.Mutex
	queue  []*Envelope
	limit  int
	onDrop func(*Envelope)

	// changed is closed and replaced on every delivery so that all
	// waiters rescan the queue.
	changed   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates a mailbox holding at most limit envelopes.
// onDrop, if set, is called for every envelope evicted by overflow.
func NewMailbox(limit int, onDrop func(*Envelope)) *Mailbox {
	if limit <= 0 {
		limit = DefaultMailboxSize
	}
	return &Mailbox{
		limit:   limit,
		onDrop:  onDrop,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Deliver appends env. Returns false if the mailbox is closed.
func (m *Mailbox) Deliver(env *Envelope) bool {
	var dropped *Envelope

	m.mu.Lock()
	select {
	case <-m.done:
		m.mu.Unlock()
		return false
	default:
	}
	if len(m.queue) >= m.limit {
		dropped = m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
	}
	m.queue = append(m.queue, env)
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if dropped != nil && m.onDrop != nil {
		m.onDrop(dropped)
	}
	return true
}

// WaitFor blocks until an envelope with exactly tag (and satisfying any
// WaitOption) is queued, the timeout elapses, ctx is done, or the mailbox
// closes. A timeout <= 0 checks the queue once.
//
// Returns ErrTimeout on deadline and ErrClosed after Close.
func (m *Mailbox) WaitFor(ctx context.Context, tag Tag, timeout time.Duration, opts ...WaitOption) (*Envelope, error) {
	cfg := waitConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return m.take(ctx, timeout, func(env *Envelope) bool {
		if env.Tag != tag {
			return false
		}
		return cfg.match == nil || cfg.match(env)
	})
}

// Receive blocks until any envelope is queued and returns the oldest.
func (m *Mailbox) Receive(ctx context.Context) (*Envelope, error) {
	return m.take(ctx, 0, nil)
}

func (m *Mailbox) take(ctx context.Context, timeout time.Duration, match func(*Envelope) bool) (*Envelope, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		env, changed := m.remove(match)
		if env != nil {
			return env, nil
		}

		// match == nil means Receive, which waits without a deadline.
		if timeout <= 0 && match != nil {
			return nil, ErrTimeout
		}

		select {
		case <-changed:
		case <-expired:
			// One last look: the envelope may have landed with the timer.
			if env, _ := m.remove(match); env != nil {
				return env, nil
			}
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.done:
			return nil, ErrClosed
		}
	}
}

// remove takes the first matching envelope. When nothing matches it
// returns the channel that will be closed by the next delivery; reading it
// under the same lock as the scan means no delivery can be missed.
func (m *Mailbox) remove(match func(*Envelope) bool) (*Envelope, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, env := range m.queue {
		if match != nil && !match(env) {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		return env, nil
	}
	return nil, m.changed
}

// Len returns the number of queued envelopes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close wakes all waiters with ErrClosed and discards queued envelopes.
// Close is idempotent.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		close(m.done)
		m.queue = nil
		m.mu.Unlock()
	})
}

// Done is closed when the mailbox closes.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}
