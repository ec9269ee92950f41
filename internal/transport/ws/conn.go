// Package ws provides the WebSocket transport: an HTTP acceptor that
// upgrades connections and the per-connection read/write pumps feeding the
// space dispatcher.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Agnish1611/Omniverse/internal/config"
	"github.com/Agnish1611/Omniverse/internal/protocol"
)

// ErrConnClosed is returned by Send after the connection has shut down.
var ErrConnClosed = errors.New("connection closed")

// ErrSendQueueFull is returned by Send when the outbound queue is saturated.
// The frame is dropped rather than stalling the caller's handler turn.
var ErrSendQueueFull = errors.New("send queue full")

// Conn wraps a WebSocket connection with a buffered outbound queue. Writes
// go through a single write pump goroutine; Send never blocks.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, cfg config.WebSocketConfig) *Conn {
	return &Conn{
		ws:     ws,
		send:   make(chan []byte, cfg.SendBuffer),
		cfg:    cfg,
		closed: make(chan struct{}),
	}
}

// Send marshals msg and enqueues it for the write pump. A saturated queue
// drops the frame: position updates are superseded constantly and a client
// slow enough to fill the queue is about to be torn down anyway.
func (c *Conn) Send(msg protocol.Outgoing) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection and unblocks both pumps. Idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// writePump drains the outbound queue onto the socket and emits periodic
// pings. It owns all writes to the underlying connection.
func (c *Conn) writePump() {
	var pings <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}
	defer c.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-pings:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	if c.cfg.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.ws.WriteMessage(messageType, data)
}
