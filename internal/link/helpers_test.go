package link

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeRead is one scripted result of ReadMessage.
type fakeRead struct {
	data []byte
	err  error
}

// fakeConn is an in-memory Conn driven by the test.
type fakeConn struct {
	inbound chan fakeRead

	mu       sync.Mutex
	written  [][]byte
	writeErr error
	writes   chan []byte

	closeOnce   sync.Once
	closed      chan struct{}
	closeCode   int
	closeReason string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan fakeRead, 16),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case r := <-c.inbound:
		return r.data, r.err
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.written = append(c.written, data)
	c.writes <- data
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

// push queues a JSON-encoded frame from the device.
func (c *fakeConn) push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.inbound <- fakeRead{data: data}
}

// pushRaw queues a frame exactly as given.
func (c *fakeConn) pushRaw(data string) {
	c.inbound <- fakeRead{data: []byte(data)}
}

// fail makes the next read return err.
func (c *fakeConn) fail(err error) {
	c.inbound <- fakeRead{err: err}
}

// hangUp simulates a clean close by the device.
func (c *fakeConn) hangUp() {
	c.inbound <- fakeRead{err: io.EOF}
}

func (c *fakeConn) setWriteErr(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *fakeConn) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// nextWrite waits for the next frame written to the device.
func (c *fakeConn) nextWrite(t *testing.T) CommandMessage {
	t.Helper()
	select {
	case data := <-c.writes:
		var msg CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode written frame %q: %v", data, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame to the device")
		return CommandMessage{}
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func strPtr(s string) *string { return &s }

var testChannels = []string{"A", "B", "C"}

// testLink bundles the shared state and services the way the server wires them.
type testLink struct {
	registry *Registry
	cache    *StatusCache
	relay    *Relay
	status   *StatusService
	manager  *Manager
	events   *recordingSink
}

func newTestLink() *testLink {
	registry := NewRegistry()
	cache := NewStatusCache(testChannels)
	events := &recordingSink{}
	m := NewManager(registry, cache)
	m.SetEventSink(events)
	return &testLink{
		registry: registry,
		cache:    cache,
		relay:    NewRelay(registry, testChannels),
		status:   NewStatusService(registry, cache),
		manager:  m,
		events:   events,
	}
}

// connect starts serving conn, completes the handshake as deviceID and
// waits until the connection is registered.
func (l *testLink) connect(t *testing.T, deviceID string) (*fakeConn, <-chan error) {
	t.Helper()
	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- l.manager.Serve(context.Background(), conn) }()

	conn.push(t, ConnectMessage{Type: TypeConnect, DeviceID: deviceID})
	eventually(t, func() bool {
		h, ok := l.registry.Lookup(deviceID)
		return ok && h.conn == conn
	}, "device registered")
	return conn, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

type sinkEvent struct {
	kind       string
	deviceID   string
	superseded bool
	changed    Snapshot
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordingSink) DeviceConnected(deviceID, _ string) {
	s.record(sinkEvent{kind: "connected", deviceID: deviceID})
}

func (s *recordingSink) DeviceStatus(deviceID string, changed, _ Snapshot) {
	s.record(sinkEvent{kind: "status", deviceID: deviceID, changed: changed})
}

func (s *recordingSink) DeviceDisconnected(deviceID, _ string, superseded bool) {
	s.record(sinkEvent{kind: "disconnected", deviceID: deviceID, superseded: superseded})
}

func (s *recordingSink) record(e sinkEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}
