package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	bberrors "github.com/randalmurphal/beaconbus/pkg/beaconbus/errors"
	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// DefaultDialTimeout bounds the dial plus handshake.
const DefaultDialTimeout = 2 * time.Second

// Transport connects to a Hub over its Unix socket.
type Transport struct {
	socketPath  string
	dialTimeout time.Duration
	retry       bberrors.RetryConfig
	bufferSize  int
	logger      *slog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithDialTimeout bounds each dial attempt including the handshake.
func WithDialTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.dialTimeout = d
	}
}

// WithRetry sets the dial retry policy.
func WithRetry(cfg bberrors.RetryConfig) TransportOption {
	return func(t *Transport) {
		t.retry = cfg
	}
}

// WithBufferSize sets the mailbox size of each connection.
func WithBufferSize(n int) TransportOption {
	return func(t *Transport) {
		t.bufferSize = n
	}
}

// WithLogger sets the logger for connection diagnostics.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport for the hub at socketPath.
func NewTransport(socketPath string, opts ...TransportOption) *Transport {
	t := &Transport{
		socketPath:  socketPath,
		dialTimeout: DefaultDialTimeout,
		retry:       bberrors.DialRetry,
		bufferSize:  event.DefaultMailboxSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect implements event.Transport. A connection that cannot be
// established returns a *bberrors.BusUnavailableError wrapping
// event.ErrUnavailable.
func (t *Transport) Connect(ctx context.Context, scope string) (event.Bus, error) {
	result := bberrors.WithRetryContext(ctx, t.retry, func(ctx context.Context) (*peer, error) {
		return t.dial(ctx, scope)
	})
	if result.Err != nil {
		return nil, &bberrors.BusUnavailableError{
			Scope: scope,
			Err:   fmt.Errorf("%w: %w", event.ErrUnavailable, result.Err),
		}
	}
	return result.Value, nil
}

func (t *Transport) dial(ctx context.Context, scope string) (*peer, error) {
	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", t.socketPath)
	if err != nil {
		return nil, bberrors.Transient(err, "dial "+t.socketPath)
	}

	dec := newDecoder(conn)
	enc := newEncoder(conn)

	if err := conn.SetDeadline(time.Now().Add(t.dialTimeout)); err != nil {
		conn.Close()
		return nil, bberrors.Transient(err, "set handshake deadline")
	}
	if err := enc.Encode(frame{Kind: frameHello, Scope: scope}); err != nil {
		conn.Close()
		return nil, bberrors.Transient(err, "send hello")
	}
	var welcome frame
	if err := dec.Decode(&welcome); err != nil {
		conn.Close()
		return nil, bberrors.Transient(err, "read welcome")
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, bberrors.Transient(err, "clear handshake deadline")
	}

	switch welcome.Kind {
	case frameWelcome:
	case frameError:
		conn.Close()
		return nil, bberrors.Permanent(errors.New(welcome.Error), "hub refused connection")
	default:
		conn.Close()
		return nil, bberrors.Permanent(fmt.Errorf("unexpected frame %q", welcome.Kind), "handshake")
	}

	p := &peer{
		id:     welcome.PeerID,
		scope:  scope,
		conn:   conn,
		dec:    dec,
		enc:    enc,
		logger: t.logger.With("peer_id", welcome.PeerID, "scope", scope),
		done:   make(chan struct{}),
	}
	p.Mailbox = event.NewMailbox(t.bufferSize, func(env *event.Envelope) {
		p.logger.Warn("mailbox full, dropped oldest envelope", "tag", env.Tag.String())
	})
	go p.readLoop()
	return p, nil
}

// peer is a socket-backed event.Bus handle.
type peer struct {
	*event.Mailbox

	id     string
	scope  string
	conn   net.Conn
	dec    *cbor.Decoder
	logger *slog.Logger

	writeMu sync.Mutex
	enc     *cbor.Encoder

	closeOnce sync.Once
	done      chan struct{}
}

// Publish implements event.Bus. The hub does not echo the envelope back.
func (p *peer) Publish(ctx context.Context, env *event.Envelope) (bool, error) {
	if env == nil {
		return false, errors.New("publish: nil envelope")
	}
	select {
	case <-p.Mailbox.Done():
		return false, event.ErrClosed
	default:
	}
	if env.Source == "" {
		env = env.Clone()
		env.Source = p.scope
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(deadline); err != nil {
		return false, fmt.Errorf("publish %s: set write deadline: %w", env.Tag, err)
	}
	if err := p.enc.Encode(frame{Kind: framePublish, Envelope: env}); err != nil {
		return false, fmt.Errorf("publish %s: %w", env.Tag, err)
	}
	return true, nil
}

// Close implements event.Bus.
func (p *peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.conn.Close()
		p.Mailbox.Close()
		<-p.done
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (p *peer) readLoop() {
	defer close(p.done)
	// A dead hub means no reply can ever arrive.
	defer p.Mailbox.Close()

	for {
		var f frame
		if err := p.dec.Decode(&f); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				p.logger.Debug("read failed", "error", err)
			}
			return
		}

		switch f.Kind {
		case frameEvent:
			if f.Envelope != nil {
				p.Deliver(f.Envelope)
			}
		case frameError:
			p.logger.Warn("hub reported error", "error", f.Error)
		default:
			p.logger.Debug("ignoring frame", "kind", string(f.Kind))
		}
	}
}
