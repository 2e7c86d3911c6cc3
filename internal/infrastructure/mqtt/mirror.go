package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/phaselink-core/internal/link"
)

// mirrorBufferSize is how many outbound messages may wait for the broker.
const mirrorBufferSize = 256

// StatePublisher publishes retained state at the client's QoS. It is
// satisfied by *Client.
type StatePublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// PresencePayload is published retained on the device presence topic.
type PresencePayload struct {
	DeviceID   string `json:"device_id"`
	Online     bool   `json:"online"`
	Generation string `json:"generation"`
	Timestamp  string `json:"timestamp"`
}

// StatusPayload is published retained on the device status topic.
type StatusPayload struct {
	DeviceID  string        `json:"device_id"`
	Phases    link.Snapshot `json:"phases"`
	Timestamp string        `json:"timestamp"`
}

type outbound struct {
	topic   string
	payload []byte
}

// Mirror republishes device lifecycle events to the broker.
//
// It implements link.EventSink. Events are queued on a bounded buffer and
// published by Run, so a slow or absent broker never stalls a device's read
// loop. When the buffer is full the event is dropped and logged.
type Mirror struct {
	pub    StatePublisher
	topics Topics
	logger Logger

	queue chan outbound
	once  sync.Once
	done  chan struct{}
}

var _ link.EventSink = (*Mirror)(nil)

// NewMirror creates a mirror publishing through pub.
func NewMirror(pub StatePublisher, topics Topics) *Mirror {
	return &Mirror{
		pub:    pub,
		topics: topics,
		queue:  make(chan outbound, mirrorBufferSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets a logger for dropped and failed publishes.
func (m *Mirror) SetLogger(logger Logger) {
	m.logger = logger
}

// Run publishes queued events until ctx is cancelled, then drains what is
// already queued. It blocks.
func (m *Mirror) Run(ctx context.Context) {
	defer m.once.Do(func() { close(m.done) })

	for {
		select {
		case msg := <-m.queue:
			m.publish(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-m.queue:
					m.publish(msg)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (m *Mirror) Done() <-chan struct{} {
	return m.done
}

func (m *Mirror) publish(msg outbound) {
	if err := m.pub.PublishRetained(msg.topic, msg.payload); err != nil && m.logger != nil {
		m.logger.Warn("mirror publish failed", "topic", msg.topic, "error", err)
	}
}

func (m *Mirror) enqueue(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		if m.logger != nil {
			m.logger.Error("mirror payload encoding failed", "topic", topic, "error", err)
		}
		return
	}

	select {
	case m.queue <- outbound{topic: topic, payload: payload}:
	default:
		if m.logger != nil {
			m.logger.Warn("mirror queue full, dropping message", "topic", topic)
		}
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DeviceConnected publishes the device as online.
func (m *Mirror) DeviceConnected(deviceID, generation string) {
	m.enqueue(m.topics.DevicePresence(deviceID), PresencePayload{
		DeviceID:   deviceID,
		Online:     true,
		Generation: generation,
		Timestamp:  now(),
	})
}

// DeviceStatus publishes the full snapshot after an update.
func (m *Mirror) DeviceStatus(deviceID string, _, current link.Snapshot) {
	m.enqueue(m.topics.DeviceStatus(deviceID), StatusPayload{
		DeviceID:  deviceID,
		Phases:    current,
		Timestamp: now(),
	})
}

// DeviceDisconnected publishes the device as offline unless a newer
// connection has already taken over.
func (m *Mirror) DeviceDisconnected(deviceID, generation string, superseded bool) {
	if superseded {
		return
	}
	m.enqueue(m.topics.DevicePresence(deviceID), PresencePayload{
		DeviceID:   deviceID,
		Online:     false,
		Generation: generation,
		Timestamp:  now(),
	})
}
