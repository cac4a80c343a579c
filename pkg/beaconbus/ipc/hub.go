package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/randalmurphal/beaconbus/pkg/beaconbus/event"
)

// handshakeTimeout is how long a new connection has to send hello.
const handshakeTimeout = 5 * time.Second

// writeTimeout bounds a single frame write.
const writeTimeout = 10 * time.Second

// Hub serves a LocalBus on a Unix socket. Every connected peer gets its
// own handle on the bus, so socket peers and in-process subscribers see
// the same stream of envelopes.
type Hub struct {
	socketPath string
	bus        *event.LocalBus
	logger     *slog.Logger

	mu    sync.Mutex
	conns map[string]net.Conn // peer ID -> connection

	ready     chan struct{}
	readyOnce sync.Once

	// activeConnections tracks connection handlers so Serve can wait for
	// them on shutdown.
	activeConnections sync.WaitGroup
}

// NewHub creates a hub that will listen on socketPath.
func NewHub(socketPath string, bus *event.LocalBus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		socketPath: socketPath,
		bus:        bus,
		logger:     logger,
		conns:      make(map[string]net.Conn),
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the socket is listening.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Serve accepts peers until ctx is cancelled, then disconnects every peer
// and waits for their handlers to finish.
//
// Any existing socket file at the configured path is removed before
// listening. The socket file is removed on return.
func (h *Hub) Serve(ctx context.Context) error {
	if err := os.Remove(h.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", h.socketPath, err)
	}

	listener, err := net.Listen("unix", h.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(h.socketPath)
	}()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
		h.disconnectAll()
	})
	defer stop()

	h.logger.Info("event hub listening", "path", h.socketPath)
	h.readyOnce.Do(func() { close(h.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			h.logger.Error("accept failed", "error", err)
			continue
		}

		h.activeConnections.Add(1)
		go func() {
			defer h.activeConnections.Done()
			h.handleConnection(ctx, conn)
		}()
	}

	h.disconnectAll()
	h.activeConnections.Wait()
	return nil
}

// handleConnection runs one peer: handshake, then a pump goroutine
// forwarding the peer's mailbox while this goroutine reads publishes.
func (h *Hub) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peerID := uuid.NewString()
	if !h.track(ctx, peerID, conn) {
		return
	}
	defer h.untrack(peerID)

	dec := newDecoder(conn)
	w := &frameWriter{conn: conn, enc: newEncoder(conn)}

	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		h.logger.Debug("set handshake deadline failed", "error", err)
		return
	}
	var hello frame
	if err := dec.Decode(&hello); err != nil {
		if !errors.Is(err, io.EOF) {
			h.logger.Debug("handshake failed", "error", err)
		}
		return
	}
	if hello.Kind != frameHello {
		if err := w.write(frame{Kind: frameError, Error: fmt.Sprintf("expected hello, got %q", hello.Kind)}); err != nil {
			h.logger.Debug("reject handshake failed", "error", err)
		}
		return
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		h.logger.Debug("clear handshake deadline failed", "error", err)
		return
	}

	handle, err := h.bus.Connect(ctx, hello.Scope)
	if err != nil {
		if werr := w.write(frame{Kind: frameError, Error: err.Error()}); werr != nil {
			h.logger.Debug("reject handshake failed", "error", werr)
		}
		return
	}
	defer handle.Close()

	if err := w.write(frame{Kind: frameWelcome, PeerID: peerID}); err != nil {
		return
	}

	logger := h.logger.With("peer_id", peerID, "scope", hello.Scope)
	logger.Debug("peer connected")

	reject := func(message string) {
		if err := w.write(frame{Kind: frameError, Error: message}); err != nil {
			logger.Debug("error frame not sent", "error", err)
		}
	}

	peerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pump sync.WaitGroup
	pump.Add(1)
	go func() {
		defer pump.Done()
		defer conn.Close()
		for {
			env, err := handle.Receive(peerCtx)
			if err != nil {
				return
			}
			if err := w.write(frame{Kind: frameEvent, Envelope: env}); err != nil {
				logger.Debug("event write failed", "error", err)
				return
			}
		}
	}()

	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("read failed", "error", err)
			}
			break
		}

		switch f.Kind {
		case framePublish:
			if f.Envelope == nil {
				reject("publish without envelope")
				continue
			}
			if _, err := handle.Publish(peerCtx, f.Envelope); err != nil {
				reject(err.Error())
			}
		default:
			reject(fmt.Sprintf("unexpected frame %q", f.Kind))
		}
	}

	cancel()
	handle.Close()
	pump.Wait()
	logger.Debug("peer disconnected")
}

// track registers conn unless the hub is already shutting down.
func (h *Hub) track(ctx context.Context, peerID string, conn net.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	h.conns[peerID] = conn
	return true
}

func (h *Hub) untrack(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, peerID)
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		conn.Close()
	}
}

// frameWriter serializes frame writes on one connection.
type frameWriter struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *cbor.Encoder
}

func (w *frameWriter) write(f frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return w.enc.Encode(f)
}
