package event

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DeadLetterQueue stores envelopes whose handler failed.
type DeadLetterQueue interface {
	// Enqueue adds a failed envelope. Enqueuing the same envelope ID again
	// increments its attempt count.
	Enqueue(ctx context.Context, failed *FailedEnvelope) error

	// Dequeue returns up to limit failed envelopes, oldest failure first,
	// without removing them.
	Dequeue(ctx context.Context, limit int) ([]*FailedEnvelope, error)

	// Acknowledge removes an envelope after successful reprocessing.
	Acknowledge(ctx context.Context, envelopeID string) error

	// Count returns the number of envelopes in the queue.
	Count(ctx context.Context) (int, error)
}

// DLQConfig configures the in-memory dead letter queue.
type DLQConfig struct {
	// MaxSize limits the number of envelopes kept. The oldest failure is
	// evicted when full.
	// Default: 1000
	MaxSize int

	// OnEnqueue is called when an envelope is added.
	OnEnqueue func(*FailedEnvelope)
}

// DefaultDLQConfig provides reasonable defaults.
var DefaultDLQConfig = DLQConfig{
	MaxSize: 1000,
}

// DLQStats reports queue activity.
type DLQStats struct {
	Size         int
	Enqueued     int64
	Acknowledged int64
	Evicted      int64
}

// InMemoryDLQ is an in-memory DeadLetterQueue.
type InMemoryDLQ struct {
	mu      sync.Mutex
	entries map[string]*FailedEnvelope
	cfg     DLQConfig

	enqueued     int64
	acknowledged int64
	evicted      int64
}

// NewInMemoryDLQ creates a new in-memory dead letter queue.
func NewInMemoryDLQ(cfg DLQConfig) *InMemoryDLQ {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultDLQConfig.MaxSize
	}
	return &InMemoryDLQ{
		entries: make(map[string]*FailedEnvelope),
		cfg:     cfg,
	}
}

// Enqueue implements DeadLetterQueue.
func (d *InMemoryDLQ) Enqueue(ctx context.Context, failed *FailedEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed == nil || failed.EnvelopeID == "" {
		return fmt.Errorf("dlq: envelope ID is required")
	}

	d.mu.Lock()
	if existing, ok := d.entries[failed.EnvelopeID]; ok {
		existing.AttemptCount++
		existing.LastFailedAt = failed.LastFailedAt
		existing.ErrorMessage = failed.ErrorMessage
		d.mu.Unlock()
		return nil
	}

	if len(d.entries) >= d.cfg.MaxSize {
		d.evictOldestLocked()
	}
	failed.AttemptCount = max(failed.AttemptCount, 1)
	d.entries[failed.EnvelopeID] = failed
	d.enqueued++
	d.mu.Unlock()

	if d.cfg.OnEnqueue != nil {
		d.cfg.OnEnqueue(failed)
	}
	return nil
}

// Dequeue implements DeadLetterQueue.
func (d *InMemoryDLQ) Dequeue(ctx context.Context, limit int) ([]*FailedEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	out := make([]*FailedEnvelope, 0, len(d.entries))
	for _, f := range d.entries {
		out = append(out, f)
	}
	d.mu.Unlock()

	slices.SortFunc(out, func(a, b *FailedEnvelope) int {
		return a.FirstFailedAt.Compare(b.FirstFailedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Acknowledge implements DeadLetterQueue.
func (d *InMemoryDLQ) Acknowledge(ctx context.Context, envelopeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[envelopeID]; !ok {
		return fmt.Errorf("dlq: envelope %s not found", envelopeID)
	}
	delete(d.entries, envelopeID)
	d.acknowledged++
	return nil
}

// Count implements DeadLetterQueue.
func (d *InMemoryDLQ) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries), nil
}

// Stats returns queue statistics.
func (d *InMemoryDLQ) Stats() DLQStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DLQStats{
		Size:         len(d.entries),
		Enqueued:     d.enqueued,
		Acknowledged: d.acknowledged,
		Evicted:      d.evicted,
	}
}

func (d *InMemoryDLQ) evictOldestLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, f := range d.entries {
		if oldestID == "" || f.FirstFailedAt.Before(oldestAt) {
			oldestID, oldestAt = id, f.FirstFailedAt
		}
	}
	if oldestID != "" {
		delete(d.entries, oldestID)
		d.evicted++
	}
}
