package beaconbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/config"
	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/observability"
)

// Client performs correlated request/response calls over an event bus.
// A Client is safe for concurrent use; every call opens its own handle.
type Client struct {
	transport event.Transport
	cfg       clientConfig
}

// NewClient creates a client that connects through transport.
func NewClient(transport event.Transport, opts ...ClientOption) *Client {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{transport: transport, cfg: cfg}
}

// Settings returns the settings the client was built with.
func (c *Client) Settings() config.Settings {
	return c.cfg.settings
}

// Call performs one request/response exchange and reports the result as an
// Outcome. Call never returns an error; failures are described by the
// Outcome's Comment and Failure kind.
func (c *Client) Call(ctx context.Context, req Request) Outcome {
	if req.DryRun || c.cfg.settings.Test {
		return Succeeded(req.DryRunComment)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.settings.Timeout
	}
	if timeout <= 0 {
		timeout = config.DefaultSettings().Timeout
	}

	env := event.NewEnvelope(c.cfg.requestTag, req.payload(), event.WithSource(c.cfg.scope))
	env.CorrelationID = env.ID

	ctx, span := c.cfg.spans.StartCallSpan(ctx, req.Operation, env.ID)
	logger := observability.EnrichLogger(c.cfg.logger, req.Operation, env.ID)
	elapsed := observability.TimedOperation()

	outcome := c.exchange(ctx, req, env, timeout, logger)

	durationMs := elapsed()
	c.cfg.metrics.RecordCall(ctx, req.Operation, outcome.Failure.String(),
		time.Duration(durationMs*float64(time.Millisecond)))
	if outcome.Success {
		observability.LogCallComplete(logger, durationMs, true)
		c.cfg.spans.EndSpanWithError(span, nil)
	} else {
		observability.LogCallFailure(logger, outcome.Failure.String(), outcome.Comment, durationMs)
		c.cfg.spans.EndSpanWithError(span, errors.New(outcome.Comment))
	}
	return outcome
}

func (c *Client) exchange(ctx context.Context, req Request, env *event.Envelope, timeout time.Duration, logger *slog.Logger) Outcome {
	bus, err := c.transport.Connect(ctx, c.cfg.scope)
	if err != nil {
		logger.Debug("connect failed", "error", err)
		return Failed(bberrors.KindBusUnavailable,
			fmt.Sprintf("Event module not available. %s failed.", req.Label))
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Debug("closing bus handle", "error", err)
		}
	}()

	observability.LogCallStart(logger, env.Tag.String())
	sent, err := bus.Publish(ctx, env)
	c.cfg.metrics.RecordPublish(ctx, env.Tag.String(), sent && err == nil)
	if err != nil || !sent {
		if err != nil {
			logger.Debug("publish failed", "error", err)
		}
		return Failed(bberrors.KindBusUnavailable,
			fmt.Sprintf("Event module not available. %s event was not sent.", req.Label))
	}
	c.cfg.spans.AddSpanEvent(ctx, "request.published", attribute.String("tag", env.Tag.String()))

	reply, err := bus.WaitFor(ctx, req.Completion, timeout,
		event.MatchCorrelation(env.ID, c.cfg.settings.StrictCorrelation))
	if err != nil {
		// A closed handle or a cancelled context means no reply arrived
		// either way.
		logger.Debug("no completion event", "tag", req.Completion.String(), "error", err)
		return Failed(bberrors.KindTimeout, fmt.Sprintf(
			"Did not receive the %s complete event before the timeout of %ss",
			req.eventName(), bberrors.FormatSeconds(timeout)))
	}
	c.cfg.spans.AddSpanEvent(ctx, "reply.received", attribute.String("tag", reply.Tag.String()))
	observability.LogReply(logger, reply.Tag.String(), reply.Data)

	r := ReplyOf(reply)
	if complete, present := r.Complete(); present && !complete {
		comment := r.Comment()
		if comment == "" {
			comment = fmt.Sprintf("%s was not completed.", req.Label)
		}
		return Failed(bberrors.KindRemoteRejected, comment)
	}

	interp := req.Interpreter
	if interp == nil {
		interp = acceptReply
	}
	return interp.Interpret(r)
}
