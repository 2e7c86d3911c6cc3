package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/phaselink-core/internal/audit"
	"github.com/nerrad567/phaselink-core/internal/link"
)

// auditTimeout bounds the audit write made for each bridged command.
const auditTimeout = 2 * time.Second

// Publisher sends one message to the broker. It is satisfied by *Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber registers a topic handler. It is satisfied by *Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// Unsubscriber drops a topic handler. It is satisfied by *Client.
type Unsubscriber interface {
	Unsubscribe(topic string) error
}

// CommandSender relays a command to a device. It is satisfied by *link.Relay.
type CommandSender interface {
	Send(deviceID, channel, action string) (link.DeliveryResult, error)
}

// CommandPayload is the body of a message on a device command topic.
type CommandPayload struct {
	Phase   string `json:"phase"`
	Command string `json:"command"`
}

// AuditRecorder stores one audit entry. It is satisfied by *audit.SQLiteRepository.
type AuditRecorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// CommandAck is published on the ack topic after each command.
type CommandAck struct {
	Phase     string `json:"phase"`
	Command   string `json:"command"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// CommandBridge lets broker clients send device commands the same way the
// HTTP API does. Each command's outcome is published, not retained, on the
// device's ack topic.
type CommandBridge struct {
	sender CommandSender
	pub    Publisher
	topics Topics
	qos    byte
	audit  AuditRecorder
}

// NewCommandBridge creates a bridge relaying through sender.
func NewCommandBridge(sender CommandSender, pub Publisher, topics Topics, qos byte) *CommandBridge {
	return &CommandBridge{sender: sender, pub: pub, topics: topics, qos: qos}
}

// SetAudit records every bridged command in the audit trail.
func (b *CommandBridge) SetAudit(rec AuditRecorder) {
	b.audit = rec
}

// Start subscribes to the command topics of every device.
func (b *CommandBridge) Start(sub Subscriber) error {
	return sub.Subscribe(b.topics.AllDeviceCommands(), b.qos, b.Handle)
}

// Stop unsubscribes from the command topics. Call it before closing the
// client so no command is relayed once shutdown has begun.
func (b *CommandBridge) Stop(unsub Unsubscriber) error {
	return unsub.Unsubscribe(b.topics.AllDeviceCommands())
}

// Handle processes one command message. The returned error is logged by the client.
func (b *CommandBridge) Handle(topic string, payload []byte) error {
	deviceID, ok := b.topics.ParseDeviceCommand(topic)
	if !ok {
		return fmt.Errorf("%w: not a device command topic: %s", ErrInvalidTopic, topic)
	}

	var cmd CommandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command for %s: %w", deviceID, err)
	}

	ack := CommandAck{Phase: cmd.Phase, Command: cmd.Command}
	result, err := b.sender.Send(deviceID, cmd.Phase, cmd.Command)
	if err != nil {
		ack.Error = err.Error()
	}
	ack.Delivered = result == link.Delivered
	b.record(deviceID, ack)

	data, mErr := json.Marshal(ack)
	if mErr != nil {
		return fmt.Errorf("encoding command ack: %w", mErr)
	}
	if pErr := b.pub.Publish(b.topics.DeviceCommandAck(deviceID), data, b.qos, false); pErr != nil {
		return pErr
	}
	return err
}

// record writes the command outcome to the audit trail. Failures are
// returned nowhere; the ack has already told the sender what happened.
func (b *CommandBridge) record(deviceID string, ack CommandAck) {
	if b.audit == nil {
		return
	}
	details := map[string]any{"phase": ack.Phase, "command": ack.Command, "delivered": ack.Delivered}
	if ack.Error != "" {
		details["error"] = ack.Error
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	_ = b.audit.Create(ctx, &audit.Entry{ //nolint:errcheck // best-effort trail
		Action:   audit.ActionCommand,
		DeviceID: deviceID,
		Source:   audit.SourceMQTT,
		Details:  details,
	})
}
