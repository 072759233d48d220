// Package transport maintains one persistent WebSocket connection to a chat
// backend and surfaces its lifecycle as a typed event channel.
//
// Frames are raw text both ways: an outbound frame is one user message, an
// inbound frame is one assistant message. There is no envelope, sequencing,
// or acknowledgment; ordering relies on delivery order within a single
// connection lifetime.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/capitalize-ai/chat-session-engine/pkg/logger"
)

var (
	// ErrNotConnected is returned by Send when the transport is not in the
	// connected state. Nothing is buffered across disconnects.
	ErrNotConnected = errors.New("transport not connected")

	// ErrConnectionFailed wraps dial and I/O failures surfaced as events.
	ErrConnectionFailed = errors.New("connection failed")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultEventBuffer      = 16
)

// Config holds the connection settings for a Conn.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the chat backend.
	Endpoint string
	// Header is sent with the handshake, typically an Authorization bearer.
	Header http.Header
	// HandshakeTimeout bounds the dial. Defaults to 10s when zero.
	HandshakeTimeout time.Duration
	// EventBuffer sizes the event channel. Defaults to 16 when zero.
	EventBuffer int
}

// Conn is one logical connection to the chat backend.
//
// Connect is non-blocking: the outcome is observed through the event
// channel, never a return value. Send requires the connected state and
// fails immediately otherwise. Close is idempotent and releases the
// underlying socket on every path.
type Conn struct {
	cfg Config
	log *logger.Logger

	mu     sync.Mutex
	state  State
	ws     *websocket.Conn
	closed bool

	// wmu serializes frame writes. Kept separate from mu so a stalled
	// peer never blocks state reads or Close.
	wmu sync.Mutex

	events chan Event
	done   chan struct{}
}

// New creates a disconnected transport for the configured endpoint.
func New(cfg Config, log *logger.Logger) *Conn {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Conn{
		cfg:    cfg,
		log:    log,
		state:  StateDisconnected,
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// Events returns the single-consumer event channel. The channel is never
// closed; consumers should also select on their own context.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect initiates the connection. It returns immediately; completion or
// failure arrives as events. A failed dial lands back in the disconnected
// state with a retryable error event. Calling Connect while connecting,
// connected, or after Close is a no-op.
func (c *Conn) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.emit(Event{Kind: KindStateChange, State: StateConnecting})

	go c.dial(ctx)
}

func (c *Conn) dial(ctx context.Context) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	ws, resp, err := dialer.DialContext(ctx, c.cfg.Endpoint, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		stale := c.closed
		if !stale {
			c.state = StateDisconnected
		}
		c.mu.Unlock()

		if stale {
			return
		}
		c.log.Warn("dial failed", "endpoint", c.cfg.Endpoint, "error", err)
		c.emit(Event{Kind: KindError, Err: fmt.Errorf("%w: %v", ErrConnectionFailed, err)})
		c.emit(Event{Kind: KindStateChange, State: StateDisconnected})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Debug("connected", "endpoint", c.cfg.Endpoint)
	c.emit(Event{Kind: KindStateChange, State: StateConnected})

	go c.readPump(ws)
}

// readPump delivers inbound frames in arrival order until the socket fails
// or the transport is closed.
func (c *Conn) readPump(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			active := !c.closed && c.ws == ws
			if active {
				c.ws = nil
				c.state = StateDisconnected
			}
			c.mu.Unlock()

			ws.Close()
			if active {
				c.log.Warn("connection lost", "error", err)
				c.emit(Event{Kind: KindError, Err: fmt.Errorf("%w: %v", ErrConnectionFailed, err)})
				c.emit(Event{Kind: KindStateChange, State: StateDisconnected})
			}
			return
		}

		c.emit(Event{Kind: KindMessage, Text: string(data)})
	}
}

// Send writes text as one outbound frame. It fails immediately with
// ErrNotConnected unless the transport is connected; no send queue is
// maintained across disconnects.
func (c *Conn) Send(text string) error {
	c.mu.Lock()
	ws := c.ws
	connected := !c.closed && c.state == StateConnected && ws != nil
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	if err := c.write(ws, []byte(text)); err != nil {
		c.mu.Lock()
		active := !c.closed && c.ws == ws
		if active {
			c.ws = nil
			c.state = StateDisconnected
		}
		c.mu.Unlock()

		ws.Close()
		if active {
			c.emit(Event{Kind: KindStateChange, State: StateDisconnected})
		}
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// write serializes frame writes; the websocket allows one concurrent
// writer. The state lock is never held across the network write, so a
// write to a socket that got swapped out mid-call just fails and is
// handled by the caller.
func (c *Conn) write(ws *websocket.Conn, data []byte) error {
	c.mu.Lock()
	stale := c.ws != ws
	c.mu.Unlock()
	if stale {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down. It is idempotent; the socket is released
// on every path and no further events are emitted.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	close(c.done)
	if ws != nil {
		return ws.Close()
	}
	return nil
}

// emit delivers an event to the consumer, dropping it only when the
// transport has been closed.
func (c *Conn) emit(ev Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.events <- ev:
	case <-c.done:
	}
}
