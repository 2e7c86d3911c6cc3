package link

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Wire message constants. Every frame is a single JSON object.
const (
	// TypeConnect is the handshake frame type sent by a device.
	TypeConnect = "connect"

	// TypeCommand is the frame type of every server-to-device message.
	TypeCommand = "command"

	// CommandStatus asks the device to push its current status.
	CommandStatus = "status"

	// fieldStatus is the key carrying an unsolicited status push.
	fieldStatus = "status"
)

// ConnectMessage is the handshake a device sends as its first frame.
type ConnectMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

// CommandMessage is sent from the server to a device.
// Phase is omitted for the status-refresh request.
type CommandMessage struct {
	Type    string `json:"type"`
	Phase   string `json:"phase,omitempty"`
	Command string `json:"command"`
}

// newCommand builds an operator command for one channel.
func newCommand(channel, action string) CommandMessage {
	return CommandMessage{Type: TypeCommand, Phase: channel, Command: action}
}

// newStatusRequest builds the refresh request sent after a status read.
func newStatusRequest() CommandMessage {
	return CommandMessage{Type: TypeCommand, Command: CommandStatus}
}

// frame is one decoded inbound message with its fields left raw so that a
// badly typed field never makes the whole frame unreadable.
type frame map[string]json.RawMessage

// decodeFrame parses an inbound payload. Only payloads that are not a JSON
// object at all are rejected.
func decodeFrame(data []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if f == nil {
		// JSON null decodes into a nil map without error.
		return nil, fmt.Errorf("%w: null payload", ErrMalformedFrame)
	}
	return f, nil
}

// stringField returns a string-typed field, or false if missing or not a string.
func (f frame) stringField(name string) (string, bool) {
	raw, ok := f[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// parseHandshake extracts the device identity from the first frame.
func parseHandshake(data []byte) (string, error) {
	f, err := decodeFrame(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if typ, _ := f.stringField("type"); typ != TypeConnect {
		return "", fmt.Errorf("%w: first message must be of type %q", ErrProtocolViolation, TypeConnect)
	}
	id, ok := f.stringField("device_id")
	if !ok || strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: connect message needs a non-empty device_id", ErrProtocolViolation)
	}
	return id, nil
}

// statusValues extracts a status push. The second return is false when the
// frame carries no usable status object, in which case it is ignored.
//
// Each channel value is normalised to a string: JSON strings are kept as is,
// numbers and booleans keep their literal text, and null marks the channel
// unknown. Nested objects and arrays are skipped.
func (f frame) statusValues() (map[string]*string, bool) {
	raw, ok := f[fieldStatus]
	if !ok {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}

	values := make(map[string]*string, len(fields))
	for channel, v := range fields {
		value, usable := scalarValue(v)
		if !usable {
			continue
		}
		values[channel] = value
	}
	return values, true
}

func scalarValue(raw json.RawMessage) (*string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	switch trimmed[0] {
	case 'n':
		return nil, true
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, false
		}
		return &s, true
	case '{', '[':
		return nil, false
	default:
		s := string(trimmed)
		return &s, true
	}
}
