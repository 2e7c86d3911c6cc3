package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// Manager runs the lifecycle of every device connection.
//
// Each connection moves through three states:
//
//	AwaitingHandshake -> Connected -> Terminated
//
// The first frame must be a connect message. After that, status pushes
// update the cache and all other well-formed frames are ignored. A read
// error, transport close or malformed frame terminates the connection,
// which removes its registry mapping (if still current) but keeps the
// device's snapshot.
type Manager struct {
	registry *Registry
	cache    *StatusCache
	sink     EventSink
	logger   Logger

	mu      sync.Mutex
	live    map[*Handle]string
	closing bool

	wg sync.WaitGroup
}

// NewManager creates a lifecycle manager over the shared registry and cache.
func NewManager(registry *Registry, cache *StatusCache) *Manager {
	return &Manager{
		registry: registry,
		cache:    cache,
		sink:     nopSink{},
		logger:   noopLogger{},
		live:     make(map[*Handle]string),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = loggerOrNoop(logger)
}

// SetEventSink sets the receiver of lifecycle events. Nil disables events.
// It must be called before the first Serve.
func (m *Manager) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = nopSink{}
	}
	m.sink = sink
}

// Serve runs one connection until it terminates. It blocks, so callers run
// it on the connection's own goroutine.
//
// Cancelling ctx closes the transport with a going-away code. Serve returns
// nil for a clean close or shutdown, an error wrapping ErrProtocolViolation
// for a bad handshake, ErrMalformedFrame for an unparsable frame, and
// ErrTransportClosed for any other transport failure.
func (m *Manager) Serve(ctx context.Context, conn Conn) error {
	m.wg.Add(1)
	defer m.wg.Done()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(websocket.CloseGoingAway, "server shutting down") //nolint:errcheck // best-effort
	})
	defer stop()

	deviceID, err := m.handshake(ctx, conn)
	if err != nil || deviceID == "" {
		return err
	}

	h := NewHandle(conn)

	if !m.track(h, deviceID) {
		_ = h.Close(websocket.CloseGoingAway, "server shutting down") //nolint:errcheck // best-effort
		return fmt.Errorf("%w: server shutting down", ErrTransportClosed)
	}

	// The snapshot must exist before the handle becomes visible so a status
	// read never sees a connected device without one.
	m.cache.Initialize(deviceID)
	m.registry.Register(deviceID, h)

	m.logger.Info("device connected", "device_id", deviceID, "generation", h.Generation())
	m.sink.DeviceConnected(deviceID, h.Generation())

	err = m.readLoop(deviceID, h)
	m.teardown(deviceID, h)

	switch {
	case err == nil, errors.Is(err, io.EOF), ctx.Err() != nil:
		return nil
	case errors.Is(err, ErrMalformedFrame):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
}

// handshake reads and validates the first frame. An empty identity with a
// nil error means the peer went away before saying anything.
func (m *Manager) handshake(ctx context.Context, conn Conn) (string, error) {
	data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close(websocket.CloseNormalClosure, "") //nolint:errcheck // transport already gone
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}

	deviceID, err := parseHandshake(data)
	if err != nil {
		m.logger.Warn("rejecting device connection", "error", err)
		_ = conn.Close(websocket.ClosePolicyViolation, "expected connect message") //nolint:errcheck // closing anyway
		return "", err
	}
	return deviceID, nil
}

func (m *Manager) readLoop(deviceID string, h *Handle) error {
	for {
		data, err := h.conn.ReadMessage()
		if err != nil {
			return err
		}

		f, err := decodeFrame(data)
		if err != nil {
			m.logger.Warn("malformed frame from device", "device_id", deviceID, "error", err)
			_ = h.Close(websocket.CloseInvalidFramePayloadData, "malformed frame") //nolint:errcheck // tearing down
			return err
		}

		values, ok := f.statusValues()
		if !ok {
			m.logger.Debug("ignoring device message", "device_id", deviceID)
			continue
		}

		if live, ok := m.registry.Lookup(deviceID); !ok || live != h {
			m.logger.Debug("dropping status from superseded connection", "device_id", deviceID, "generation", h.Generation())
			continue
		}

		current := m.cache.Update(deviceID, values)
		m.logger.Debug("device status updated", "device_id", deviceID, "channels", len(values))
		m.sink.DeviceStatus(deviceID, Snapshot(values), current)
	}
}

func (m *Manager) teardown(deviceID string, h *Handle) {
	m.registry.Unregister(deviceID, h)
	_ = h.Close(websocket.CloseNormalClosure, "") //nolint:errcheck // transport may already be gone
	m.untrack(h)

	current, ok := m.registry.Lookup(deviceID)
	superseded := ok && current != h

	m.logger.Info("device disconnected",
		"device_id", deviceID,
		"generation", h.Generation(),
		"superseded", superseded,
	)
	m.sink.DeviceDisconnected(deviceID, h.Generation(), superseded)
}

func (m *Manager) track(h *Handle, deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return false
	}
	m.live[h] = deviceID
	return true
}

func (m *Manager) untrack(h *Handle) {
	m.mu.Lock()
	delete(m.live, h)
	m.mu.Unlock()
}

// CloseAll closes every live device connection with a going-away code and
// refuses new handshakes. It returns the number of connections closed.
// Serve calls still running finish on their own; use Wait to block on them.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	m.closing = true
	handles := make([]*Handle, 0, len(m.live))
	for h := range m.live {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		_ = h.Close(websocket.CloseGoingAway, "server shutting down") //nolint:errcheck // best-effort
	}
	return len(handles)
}

// Wait blocks until every Serve call has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Connected returns the number of devices with a live connection.
func (m *Manager) Connected() int {
	return m.registry.Count()
}
