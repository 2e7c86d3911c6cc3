package link

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSOptions tunes a websocket transport.
type WSOptions struct {
	// MaxMessageSize caps inbound frames in bytes. Zero means no limit.
	MaxMessageSize int64

	// PingInterval is the keep-alive period. Zero disables pings.
	// Pings never set a read deadline; a silent device stays connected.
	PingInterval time.Duration

	// WriteTimeout bounds each write. Zero means no deadline.
	WriteTimeout time.Duration
}

// WSConn adapts a gorilla websocket connection to Conn.
type WSConn struct {
	conn *websocket.Conn
	opts WSOptions

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// NewWSConn wraps an upgraded websocket and starts its keep-alive loop.
func NewWSConn(conn *websocket.Conn, opts WSOptions) *WSConn {
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	c := &WSConn{
		conn: conn,
		opts: opts,
		done: make(chan struct{}),
	}
	if opts.PingInterval > 0 {
		go c.pingLoop()
	}
	return c
}

// ReadMessage returns the next data frame. A normal or going-away close
// from the peer, or a local Close, is reported as io.EOF.
func (c *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// WriteMessage writes one text frame.
func (c *WSConn) WriteMessage(data []byte) error {
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame with code and reason, then closes the socket.
// Calls after the first are no-ops.
func (c *WSConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		deadline := time.Now().Add(time.Second)
		if c.opts.WriteTimeout > 0 {
			deadline = time.Now().Add(c.opts.WriteTimeout)
		}
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline) //nolint:errcheck // peer may be gone
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.PingInterval)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
