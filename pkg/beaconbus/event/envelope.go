package event

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tag is a hierarchical event channel name such as
// "/salt/minion/minion_beacon_add_complete". Tags are matched exactly.
type Tag string

// String returns the tag as a string.
func (t Tag) String() string {
	return string(t)
}

// Validate rejects empty tags and tags containing whitespace.
func (t Tag) Validate() error {
	if t == "" {
		return fmt.Errorf("tag is required")
	}
	if strings.ContainsAny(string(t), " \t\r\n") {
		return fmt.Errorf("tag %q contains whitespace", string(t))
	}
	return nil
}

// Envelope is a tagged message on the bus.
// Envelopes are treated as immutable once published; use Clone to derive one.
type Envelope struct {
	ID            string         `cbor:"id" json:"id"`
	Tag           Tag            `cbor:"tag" json:"tag"`
	CorrelationID string         `cbor:"correlation_id,omitempty" json:"correlation_id,omitempty"`
	Source        string         `cbor:"source,omitempty" json:"source,omitempty"`
	Timestamp     time.Time      `cbor:"timestamp" json:"timestamp"`
	Data          map[string]any `cbor:"data,omitempty" json:"data,omitempty"`
}

// EnvelopeOption configures envelope creation.
type EnvelopeOption func(*Envelope)

// WithEnvelopeID sets a specific envelope ID (default: auto-generated UUID).
func WithEnvelopeID(id string) EnvelopeOption {
	return func(e *Envelope) {
		e.ID = id
	}
}

// WithCorrelationID sets the correlation ID used to pair replies with requests.
func WithCorrelationID(id string) EnvelopeOption {
	return func(e *Envelope) {
		e.CorrelationID = id
	}
}

// WithSource records which scope published the envelope.
func WithSource(source string) EnvelopeOption {
	return func(e *Envelope) {
		e.Source = source
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EnvelopeOption {
	return func(e *Envelope) {
		e.Timestamp = t
	}
}

// NewEnvelope creates an envelope for tag carrying data.
func NewEnvelope(tag Tag, data map[string]any, opts ...EnvelopeOption) *Envelope {
	env := &Envelope{
		ID:        uuid.New().String(),
		Tag:       tag,
		Timestamp: time.Now(),
		Data:      data,
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.Data == nil {
		env.Data = make(map[string]any)
	}
	return env
}

// NewReply creates an envelope answering req on tag. The reply inherits
// the request's correlation ID.
func NewReply(req *Envelope, tag Tag, data map[string]any, opts ...EnvelopeOption) *Envelope {
	all := append([]EnvelopeOption{WithCorrelationID(req.CorrelationID)}, opts...)
	return NewEnvelope(tag, data, all...)
}

// Clone returns a copy with its own top-level data map.
func (e *Envelope) Clone() *Envelope {
	clone := *e
	clone.Data = maps.Clone(e.Data)
	if clone.Data == nil {
		clone.Data = make(map[string]any)
	}
	return &clone
}

// Get returns the payload value for key.
func (e *Envelope) Get(key string) (any, bool) {
	if e == nil || e.Data == nil {
		return nil, false
	}
	v, ok := e.Data[key]
	return v, ok
}

// Handler processes envelopes and optionally returns derived envelopes
// (typically replies) that are published back onto the bus.
type Handler interface {
	// Handle processes an envelope and returns any derived envelopes.
	Handle(ctx context.Context, env *Envelope) ([]*Envelope, error)

	// Handles returns the tags this handler processes.
	// An empty slice means the handler accepts all tags.
	Handles() []Tag
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *Envelope) ([]*Envelope, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, env *Envelope) ([]*Envelope, error) {
	return f(ctx, env)
}

// Handles returns nil (accepts all tags).
func (f HandlerFunc) Handles() []Tag {
	return nil
}

// TagHandler wraps a function handling a fixed set of tags.
func TagHandler(tags []Tag, fn func(ctx context.Context, env *Envelope) ([]*Envelope, error)) Handler {
	return &tagHandler{tags: tags, fn: fn}
}

type tagHandler struct {
	tags []Tag
	fn   func(ctx context.Context, env *Envelope) ([]*Envelope, error)
}

func (h *tagHandler) Handle(ctx context.Context, env *Envelope) ([]*Envelope, error) {
	return h.fn(ctx, env)
}

func (h *tagHandler) Handles() []Tag {
	return h.tags
}

// MiddlewareFunc wraps handlers to add cross-cutting concerns.
type MiddlewareFunc func(next Handler) Handler

// ChainMiddleware applies middleware in order, with first middleware outermost.
func ChainMiddleware(handler Handler, middleware ...MiddlewareFunc) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}
