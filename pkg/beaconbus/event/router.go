package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
)

// Router dispatches envelopes to registered handlers by tag.
type Router interface {
	// Route dispatches an envelope and returns any derived envelopes.
	Route(ctx context.Context, env *Envelope) ([]*Envelope, error)

	// Register adds a handler for the tags it handles.
	Register(handler Handler, opts ...HandlerOption)

	// Use adds middleware that applies to subsequently registered handlers.
	Use(middleware MiddlewareFunc)
}

// RouterConfig configures router behavior.
type RouterConfig struct {
	// MaxDepth prevents infinite recursion when envelopes trigger other envelopes.
	// Default: 10
	MaxDepth int

	// Registry for payload validation (optional).
	Registry *TagRegistry

	// ValidateEnvelopes enables schema validation before dispatch.
	ValidateEnvelopes bool

	// DLQ receives envelopes whose handler failed (optional).
	DLQ DeadLetterQueue

	// RetryConfig for transient handler failures.
	RetryConfig bberrors.RetryConfig

	// OnError is called when an error occurs (for logging).
	OnError func(env *Envelope, handler string, err error)

	// OnSuccess is called after successful processing (for metrics).
	OnSuccess func(env *Envelope, handler string, duration time.Duration)
}

// DefaultRouterConfig provides reasonable defaults.
var DefaultRouterConfig = RouterConfig{
	MaxDepth:    10,
	RetryConfig: bberrors.DefaultRetry,
}

// handlerEntry stores a handler with its configuration.
type handlerEntry struct {
	handler Handler
	name    string
	retry   bberrors.RetryConfig
	timeout time.Duration
}

// DefaultRouter is the standard router implementation.
type DefaultRouter struct {
	config RouterConfig

	mu         sync.RWMutex
	handlers   map[Tag][]handlerEntry // tag -> handlers
	wildcards  []handlerEntry         // handlers for all tags
	middleware []MiddlewareFunc
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig) *DefaultRouter {
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultRouterConfig.MaxDepth
	}
	if config.RetryConfig.MaxAttempts <= 0 {
		config.RetryConfig = DefaultRouterConfig.RetryConfig
	}

	return &DefaultRouter{
		config:   config,
		handlers: make(map[Tag][]handlerEntry),
	}
}

// HandlerOption configures handler behavior.
type HandlerOption func(*handlerEntry)

// WithHandlerRetry sets custom retry configuration.
func WithHandlerRetry(cfg bberrors.RetryConfig) HandlerOption {
	return func(e *handlerEntry) {
		e.retry = cfg
	}
}

// WithHandlerTimeout sets a timeout for the handler.
func WithHandlerTimeout(d time.Duration) HandlerOption {
	return func(e *handlerEntry) {
		e.timeout = d
	}
}

// WithHandlerName names the handler in logs and dead letters.
func WithHandlerName(name string) HandlerOption {
	return func(e *handlerEntry) {
		e.name = name
	}
}

// Register adds a handler to the router.
func (r *DefaultRouter) Register(handler Handler, opts ...HandlerOption) {
	entry := handlerEntry{
		handler: handler,
		name:    fmt.Sprintf("%T", handler),
		retry:   r.config.RetryConfig,
	}

	for _, opt := range opts {
		opt(&entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry.handler = ChainMiddleware(entry.handler, r.middleware...)

	tags := handler.Handles()
	if len(tags) == 0 {
		r.wildcards = append(r.wildcards, entry)
		return
	}
	for _, t := range tags {
		r.handlers[t] = append(r.handlers[t], entry)
	}
}

// Use adds middleware that applies to subsequently registered handlers.
func (r *DefaultRouter) Use(middleware MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware)
}

// Handles returns every tag with a registered handler, or nil if any
// wildcard handler is registered. A router can itself be subscribed as a
// Handler.
func (r *DefaultRouter) Handles() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.wildcards) > 0 {
		return nil
	}
	tags := make([]Tag, 0, len(r.handlers))
	for t := range r.handlers {
		tags = append(tags, t)
	}
	return tags
}

// Handle implements Handler by routing env.
func (r *DefaultRouter) Handle(ctx context.Context, env *Envelope) ([]*Envelope, error) {
	return r.Route(ctx, env)
}

// Route dispatches an envelope to all matching handlers. Handler failures
// go to the DLQ and OnError; they do not fail the route.
func (r *DefaultRouter) Route(ctx context.Context, env *Envelope) ([]*Envelope, error) {
	depth := envelopeDepth(ctx)
	if depth >= r.config.MaxDepth {
		return nil, &EventError{
			Envelope: env,
			Message:  fmt.Sprintf("max event depth exceeded (%d)", r.config.MaxDepth),
		}
	}

	if r.config.ValidateEnvelopes && r.config.Registry != nil {
		if err := r.config.Registry.Validate(env); err != nil {
			return nil, &EventError{
				Envelope: env,
				Message:  "envelope validation failed",
				Err:      err,
			}
		}
	}

	r.mu.RLock()
	entries := make([]handlerEntry, 0, len(r.handlers[env.Tag])+len(r.wildcards))
	entries = append(entries, r.handlers[env.Tag]...)
	entries = append(entries, r.wildcards...)
	r.mu.RUnlock()

	if len(entries) == 0 {
		return nil, nil
	}

	ctx = withEnvelopeDepth(ctx, depth+1)

	var derived []*Envelope
	for _, entry := range entries {
		out, err := r.executeHandler(ctx, env, entry)
		if err != nil {
			if r.config.DLQ != nil {
				if dlqErr := r.config.DLQ.Enqueue(ctx, NewFailedEnvelope(env, err, entry.name)); dlqErr != nil && r.config.OnError != nil {
					r.config.OnError(env, "dlq", dlqErr)
				}
			}
			if r.config.OnError != nil {
				r.config.OnError(env, entry.name, err)
			}
			continue
		}
		derived = append(derived, out...)
	}

	return derived, nil
}

// executeHandler runs a single handler with retry and timeout.
func (r *DefaultRouter) executeHandler(ctx context.Context, env *Envelope, entry handlerEntry) ([]*Envelope, error) {
	start := time.Now()

	if entry.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.timeout)
		defer cancel()
	}

	result := bberrors.WithRetryContext(ctx, entry.retry, func(ctx context.Context) ([]*Envelope, error) {
		return entry.handler.Handle(ctx, env)
	})
	if result.Err != nil {
		return nil, result.Err
	}

	if r.config.OnSuccess != nil {
		r.config.OnSuccess(env, entry.name, time.Since(start))
	}
	return result.Value, nil
}

type contextKey string

const envelopeDepthKey contextKey = "envelope_depth"

func envelopeDepth(ctx context.Context) int {
	if v, ok := ctx.Value(envelopeDepthKey).(int); ok {
		return v
	}
	return 0
}

func withEnvelopeDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, envelopeDepthKey, depth)
}

// Common middleware implementations

// LoggingMiddleware logs every handled envelope at debug level and
// failures at warn level.
func LoggingMiddleware(logger *slog.Logger) MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return TagHandler(next.Handles(), func(ctx context.Context, env *Envelope) ([]*Envelope, error) {
			start := time.Now()
			result, err := next.Handle(ctx, env)
			attrs := []any{
				slog.String("tag", env.Tag.String()),
				slog.String("envelope_id", env.ID),
				slog.Duration("duration", time.Since(start)),
				slog.Int("derived", len(result)),
			}
			if err != nil {
				logger.WarnContext(ctx, "handler failed", append(attrs, slog.String("error", err.Error()))...)
			} else {
				logger.DebugContext(ctx, "handled envelope", attrs...)
			}
			return result, err
		})
	}
}

// RecoveryMiddleware recovers from panics in handlers.
func RecoveryMiddleware() MiddlewareFunc {
	return func(next Handler) Handler {
		return TagHandler(next.Handles(), func(ctx context.Context, env *Envelope) (result []*Envelope, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &EventError{
						Envelope: env,
						Message:  fmt.Sprintf("handler panic: %v", r),
					}
				}
			}()
			return next.Handle(ctx, env)
		})
	}
}

// CorrelationMiddleware stamps derived envelopes that carry no correlation
// ID with the ID of the envelope that produced them.
func CorrelationMiddleware() MiddlewareFunc {
	return func(next Handler) Handler {
		return TagHandler(next.Handles(), func(ctx context.Context, env *Envelope) ([]*Envelope, error) {
			result, err := next.Handle(ctx, env)
			if err != nil {
				return nil, err
			}
			for i, derived := range result {
				if derived.CorrelationID == "" && env.CorrelationID != "" {
					stamped := derived.Clone()
					stamped.CorrelationID = env.CorrelationID
					result[i] = stamped
				}
			}
			return result, nil
		})
	}
}
