package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/phaselink-core/internal/audit"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
	"github.com/nerrad567/phaselink-core/internal/link"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "phaselink-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "phaselink",
	}
}

// newUnconnectedClient builds a client that never dialled the broker.
func newUnconnectedClient(cfg config.MQTTConfig) *Client {
	opts := buildClientOptions(cfg)
	return &Client{
		client:        pahomqtt.NewClient(opts),
		options:       opts,
		cfg:           cfg,
		topics:        NewTopics(cfg.TopicPrefix),
		subscriptions: make(map[string]subscription),
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on empty client error = %v", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := newUnconnectedClient(testConfig())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() cancelled error = %v", err)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := newUnconnectedClient(testConfig())

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "phaselink/x", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "phaselink/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "phaselink/x", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := newUnconnectedClient(testConfig())
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("a", 5, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := c.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := c.Subscribe("a", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if len(c.subscriptions) != 0 {
		t.Error("failed subscription was tracked")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe empty topic error = %v", err)
	}
}

func TestUnsubscribeForgetsWhileDisconnected(t *testing.T) {
	c := newUnconnectedClient(testConfig())
	topic := c.Topics().AllDeviceCommands()
	c.remember(subscription{topic: topic, qos: 1, handler: func(string, []byte) error { return nil }})

	if err := c.Unsubscribe(topic); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if _, ok := c.subscriptions[topic]; ok {
		t.Error("unsubscribed topic would be restored on reconnect")
	}
}

func TestPublishRetainedDisconnected(t *testing.T) {
	c := newUnconnectedClient(testConfig())
	if err := c.PublishRetained(c.Topics().DeviceStatus("meter-01"), []byte(`{}`)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishRetained() error = %v, want ErrNotConnected", err)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.Auth.Username = "svc"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "phaselink-test" || opts.Username != "svc" {
		t.Errorf("ClientID/Username = %q/%q", opts.ClientID, opts.Username)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS not configured")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect disabled")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, NewTopics("site1"), "phaselink-test")

	if opts.WillTopic != "site1/system/status" || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will = %q retained=%v qos=%d", opts.WillTopic, opts.WillRetained, opts.WillQos)
	}
	var will serverPresence
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("decode will: %v", err)
	}
	if will.Status != presenceOffline || will.Reason != reasonCrash || will.ClientID != "phaselink-test" {
		t.Errorf("will = %+v", will)
	}
}

func TestPresencePayloadOnline(t *testing.T) {
	got := string(presencePayload("phaselink-test", presenceOnline, ""))
	if !strings.Contains(got, `"status":"online"`) || strings.Contains(got, "reason") {
		t.Errorf("online payload = %s", got)
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("phaselink")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"presence", topics.DevicePresence("meter-01"), "phaselink/presence/meter-01"},
		{"status", topics.DeviceStatus("meter-01"), "phaselink/status/meter-01"},
		{"command", topics.DeviceCommand("meter-01"), "phaselink/command/meter-01"},
		{"ack", topics.DeviceCommandAck("meter-01"), "phaselink/command/meter-01/ack"},
		{"system", topics.SystemStatus(), "phaselink/system/status"},
		{"all commands", topics.AllDeviceCommands(), "phaselink/command/+"},
		{"all status", topics.AllDeviceStatus(), "phaselink/status/+"},
		{"all", topics.AllTopics(), "phaselink/#"},
		{"custom prefix", NewTopics("/plant-7/").DeviceStatus("m"), "plant-7/status/m"},
		{"empty prefix", NewTopics("").DeviceStatus("m"), "phaselink/status/m"},
		{"zero value", Topics{}.DeviceStatus("m"), "phaselink/status/m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeviceCommand(t *testing.T) {
	topics := NewTopics("phaselink")

	tests := []struct {
		topic string
		want  string
		ok    bool
	}{
		{"phaselink/command/meter-01", "meter-01", true},
		{"phaselink/command/meter-01/ack", "", false},
		{"phaselink/command/", "", false},
		{"other/command/meter-01", "", false},
		{"phaselink/status/meter-01", "", false},
	}
	for _, tt := range tests {
		got, ok := topics.ParseDeviceCommand(tt.topic)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDeviceCommand(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.ok)
		}
	}
}

// =============================================================================
// Mirror and Command Bridge
// =============================================================================

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	mu       sync.Mutex
	msgs     []published
	err      error
	sent     chan struct{}
	stateQoS byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{sent: make(chan struct{}, 64), stateQoS: 1}
}

func (p *fakePublisher) PublishRetained(topic string, payload []byte) error {
	return p.Publish(topic, payload, p.stateQoS, true)
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{topic, payload, qos, retained})
	err := p.err
	p.mu.Unlock()
	p.sent <- struct{}{}
	return err
}

func (p *fakePublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func TestMirrorPublishesLifecycle(t *testing.T) {
	pub := newFakePublisher()
	m := NewMirror(pub, NewTopics("phaselink"))

	on := "on"
	m.DeviceConnected("meter-01", "gen-1")
	m.DeviceStatus("meter-01", link.Snapshot{"A": &on}, link.Snapshot{"A": &on, "B": nil})
	m.DeviceDisconnected("meter-01", "gen-0", true)
	m.DeviceDisconnected("meter-01", "gen-1", false)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	for range 3 {
		select {
		case <-pub.sent:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for publish")
		}
	}
	cancel()
	<-m.Done()

	msgs := pub.messages()
	if len(msgs) != 3 {
		t.Fatalf("published %d messages, want 3 (superseded skipped)", len(msgs))
	}
	for _, msg := range msgs {
		if !msg.retained || msg.qos != 1 {
			t.Errorf("%s retained=%v qos=%d", msg.topic, msg.retained, msg.qos)
		}
	}

	var presence PresencePayload
	if err := json.Unmarshal(msgs[0].payload, &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if msgs[0].topic != "phaselink/presence/meter-01" || !presence.Online || presence.Generation != "gen-1" {
		t.Errorf("presence = %s %+v", msgs[0].topic, presence)
	}

	if msgs[1].topic != "phaselink/status/meter-01" {
		t.Errorf("status topic = %s", msgs[1].topic)
	}
	if !strings.Contains(string(msgs[1].payload), `"phases":{"A":"on","B":null}`) {
		t.Errorf("status payload = %s", msgs[1].payload)
	}

	if err := json.Unmarshal(msgs[2].payload, &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if presence.Online {
		t.Error("final presence should be offline")
	}
}

func TestMirrorDropsWhenFull(t *testing.T) {
	pub := newFakePublisher()
	m := NewMirror(pub, NewTopics(""))

	for range mirrorBufferSize + 10 {
		m.DeviceConnected("d", "g")
	}
	if len(m.queue) != mirrorBufferSize {
		t.Errorf("queue length = %d, want %d", len(m.queue), mirrorBufferSize)
	}
}

type fakeSender struct {
	result link.DeliveryResult
	err    error
	calls  []string
}

func (s *fakeSender) Send(deviceID, channel, action string) (link.DeliveryResult, error) {
	s.calls = append(s.calls, deviceID+"/"+channel+"/"+action)
	return s.result, s.err
}

func TestCommandBridgeRelays(t *testing.T) {
	pub := newFakePublisher()
	sender := &fakeSender{result: link.Delivered}
	b := NewCommandBridge(sender, pub, NewTopics("phaselink"), 1)

	err := b.Handle("phaselink/command/meter-01", []byte(`{"phase":"A","command":"toggle"}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(sender.calls) != 1 || sender.calls[0] != "meter-01/A/toggle" {
		t.Errorf("sender calls = %v", sender.calls)
	}

	msgs := pub.messages()
	if len(msgs) != 1 || msgs[0].topic != "phaselink/command/meter-01/ack" || msgs[0].retained {
		t.Fatalf("ack = %+v", msgs)
	}
	var ack CommandAck
	if err := json.Unmarshal(msgs[0].payload, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Delivered || ack.Phase != "A" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommandBridgeErrors(t *testing.T) {
	pub := newFakePublisher()
	sender := &fakeSender{result: link.NotConnected, err: link.ErrInvalidCommand}
	b := NewCommandBridge(sender, pub, NewTopics("phaselink"), 1)

	if err := b.Handle("phaselink/status/x", []byte(`{}`)); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("bad topic error = %v", err)
	}
	if err := b.Handle("phaselink/command/x", []byte(`nope`)); err == nil {
		t.Error("bad payload accepted")
	}

	err := b.Handle("phaselink/command/x", []byte(`{"phase":"Z","command":"on"}`))
	if !errors.Is(err, link.ErrInvalidCommand) {
		t.Errorf("invalid command error = %v", err)
	}
	msgs := pub.messages()
	var ack CommandAck
	if err := json.Unmarshal(msgs[len(msgs)-1].payload, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Delivered || ack.Error == "" {
		t.Errorf("ack = %+v, want undelivered with error", ack)
	}
}

type fakeAudit struct {
	entries []audit.Entry
}

func (f *fakeAudit) Create(_ context.Context, e *audit.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func TestCommandBridgeAudits(t *testing.T) {
	rec := &fakeAudit{}
	b := NewCommandBridge(&fakeSender{result: link.NotConnected}, newFakePublisher(), NewTopics("phaselink"), 1)
	b.SetAudit(rec)

	if err := b.Handle("phaselink/command/meter-01", []byte(`{"phase":"B","command":"off"}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Action != audit.ActionCommand || e.Source != audit.SourceMQTT || e.DeviceID != "meter-01" {
		t.Errorf("entry = %+v", e)
	}
	if e.Details["delivered"] != false || e.Details["phase"] != "B" {
		t.Errorf("details = %v", e.Details)
	}
}

type fakeUnsubscriber struct {
	topics []string
	err    error
}

func (u *fakeUnsubscriber) Unsubscribe(topic string) error {
	u.topics = append(u.topics, topic)
	return u.err
}

func TestCommandBridgeStop(t *testing.T) {
	b := NewCommandBridge(&fakeSender{}, newFakePublisher(), NewTopics("phaselink"), 1)

	unsub := &fakeUnsubscriber{}
	if err := b.Stop(unsub); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(unsub.topics) != 1 || unsub.topics[0] != "phaselink/command/+" {
		t.Errorf("unsubscribed %v, want [phaselink/command/+]", unsub.topics)
	}

	unsub.err = ErrNotConnected
	if err := b.Stop(unsub); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Stop() error = %v, want ErrNotConnected", err)
	}
}
