package link

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Conn is one message-framed, full-duplex transport to a device.
//
// ReadMessage is only ever called from the connection's own lifecycle
// goroutine. WriteMessage calls are serialised by the owning Handle.
// Close may be called concurrently with both and more than once.
// ReadMessage returns io.EOF when the peer closes cleanly.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close(code int, reason string) error
}

// Handle is the server-side writable endpoint of one live device connection.
//
// Two handles are the same connection only if they are the same pointer;
// the generation string exists for logs.
type Handle struct {
	conn        Conn
	generation  string
	connectedAt time.Time

	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewHandle wraps a transport in a fresh handle.
func NewHandle(conn Conn) *Handle {
	return &Handle{
		conn:        conn,
		generation:  uuid.NewString(),
		connectedAt: time.Now().UTC(),
	}
}

// Generation returns the unique identifier of this connection.
func (h *Handle) Generation() string {
	return h.generation
}

// ConnectedAt returns when the handle was created.
func (h *Handle) ConnectedAt() time.Time {
	return h.connectedAt
}

// Send marshals msg and writes it as one frame. Concurrent calls never
// interleave bytes of two messages.
func (h *Handle) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.closed.Load() {
		return ErrHandleClosed
	}
	if err := h.conn.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// Close closes the underlying transport with the given close code.
// Only the first call reaches the transport.
func (h *Handle) Close(code int, reason string) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.conn.Close(code, reason)
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}
