package janus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	keepalivePeriod = 25 * time.Second
	destroyWait     = 2 * time.Second
	maxMessageSize  = 256 * 1024
)

var ErrSessionClosed = errors.New("signaling session closed")

// Client owns the WebSocket signaling session to the media relay. One live
// session exists per client; handles multiplex over it. A destroyed session
// is terminal: re-creation is never attempted here.
type Client struct {
	serverURL string
	conn      *websocket.Conn
	sessionID uint64

	mu      sync.Mutex
	pending map[string]chan *reply
	handles map[uint64]*Handle
	closed  bool

	outgoing chan *request
	done     chan struct{}
}

// NewClient creates a signaling client for the given relay WebSocket URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		pending:   make(map[string]chan *reply),
		handles:   make(map[uint64]*Handle),
		outgoing:  make(chan *request, 8),
		done:      make(chan struct{}),
	}
}

// Connect dials the relay and establishes the signaling session.
func (c *Client) Connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{"janus-protocol"}

	conn, _, err := dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	resp, err := c.roundTrip(ctx, &request{Janus: "create"})
	if err != nil {
		c.Destroy()
		return fmt.Errorf("create session: %w", err)
	}
	if resp.Data == nil {
		c.Destroy()
		return fmt.Errorf("create session: %w: malformed response", ErrRelayError)
	}
	c.sessionID = resp.Data.ID

	go c.keepalive()
	return nil
}

// Attach binds a new plugin handle to the session. Each handle is an
// independent signaling channel; its events arrive in relay order.
func (c *Client) Attach(ctx context.Context) (*Handle, error) {
	resp, err := c.roundTrip(ctx, &request{
		Janus:     "attach",
		SessionID: c.sessionID,
		Plugin:    VideoRoomPlugin,
	})
	if err != nil {
		return nil, fmt.Errorf("attach plugin: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("attach plugin: %w: malformed response", ErrRelayError)
	}

	h := &Handle{
		ID:     resp.Data.ID,
		client: c,
		events: make(chan *Event, 16),
	}

	c.mu.Lock()
	c.handles[h.ID] = h
	c.mu.Unlock()

	return h, nil
}

// Destroy tears the session down. It is idempotent: destroying an
// already-destroyed session is a no-op.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.conn != nil && c.sessionID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), destroyWait)
		defer cancel()
		// Best effort; the relay also reaps the session on disconnect.
		if _, err := c.roundTrip(ctx, &request{Janus: "destroy", SessionID: c.sessionID}); err != nil {
			slog.Debug("session destroy request failed", "error", err)
		}
	}

	close(c.done)
}

// roundTrip sends a request and waits for its transaction-correlated reply.
func (c *Client) roundTrip(ctx context.Context, req *request) (*reply, error) {
	req.Transaction = uuid.NewString()

	ch := make(chan *reply, 1)
	c.mu.Lock()
	c.pending[req.Transaction] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.Transaction)
		c.mu.Unlock()
	}()

	select {
	case c.outgoing <- req:
	case <-c.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrSessionClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp, nil
	case <-c.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readPump reads relay messages and routes them: transaction replies to their
// waiters, asynchronous events to the owning handle.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.failAll()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg reply
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				// Dropped transport; failAll closing the handle streams is
				// what downstream consumers react to.
				slog.Warn("relay connection lost", "error", err)
			}
			return
		}
		c.route(&msg)
	}
}

func (c *Client) route(msg *reply) {
	switch msg.Janus {
	case "success", "error", "ack":
		c.mu.Lock()
		ch, ok := c.pending[msg.Transaction]
		c.mu.Unlock()
		if ok {
			ch <- msg
		} else {
			slog.Debug("reply for unknown transaction", "janus", msg.Janus, "transaction", msg.Transaction)
		}

	case "timeout":
		slog.Warn("relay timed the session out")

	case "keepalive":
		// Session-level ack of our keepalive, nothing to do.

	default:
		// event, webrtcup, media, hangup, slowlink, detached: all scoped to a
		// handle via the sender field.
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg *reply) {
	c.mu.Lock()
	h, ok := c.handles[msg.Sender]
	c.mu.Unlock()
	if !ok {
		slog.Debug("event for unknown handle", "janus", msg.Janus, "sender", msg.Sender)
		return
	}

	ev := &Event{Kind: msg.Janus, JSEP: msg.JSEP}
	if msg.PluginData != nil {
		room, err := ParseVideoRoomEvent(msg.PluginData.Data)
		if err != nil {
			slog.Warn("undecodable plugin event", "handle", h.ID, "error", err)
			return
		}
		ev.Room = room
	}

	select {
	case h.events <- ev:
	case <-c.done:
	}
}

// failAll closes every handle's event stream and unblocks pending waiters.
func (c *Client) failAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for tx, ch := range c.pending {
		close(ch)
		delete(c.pending, tx)
	}
	for id, h := range c.handles {
		close(h.events)
		delete(c.handles, id)
	}
}

// writePump writes outgoing requests and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case req := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(req); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// keepalive keeps the relay session alive; the relay reaps sessions that go
// quiet for 60s.
func (c *Client) keepalive() {
	ticker := time.NewTicker(keepalivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			if _, err := c.roundTrip(ctx, &request{Janus: "keepalive", SessionID: c.sessionID}); err != nil {
				slog.Debug("keepalive failed", "error", err)
			}
			cancel()
		case <-c.done:
			return
		}
	}
}
