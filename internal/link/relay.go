package link

import (
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// DeliveryResult is the outcome of relaying a command.
type DeliveryResult int

const (
	// NotConnected means no live transport accepted the command.
	NotConnected DeliveryResult = iota

	// Delivered means the command bytes were handed to the device's transport.
	Delivered
)

// String returns the result as used in logs and API responses.
func (r DeliveryResult) String() string {
	if r == Delivered {
		return "delivered"
	}
	return "not_connected"
}

// Relay delivers operator commands to connected devices.
//
// Delivery is fire-and-forget: Send returns as soon as the frame is written
// and never waits for the device to act on it.
type Relay struct {
	registry *Registry
	channels map[string]struct{}
	logger   Logger
}

// NewRelay creates a relay that accepts commands for the given channel labels.
func NewRelay(registry *Registry, channels []string) *Relay {
	set := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	return &Relay{
		registry: registry,
		channels: set,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = loggerOrNoop(logger)
}

// Send relays action for channel to the device.
//
// An offline device is a normal outcome reported as NotConnected with a nil
// error. Only invalid input returns an error. A failed write also returns
// NotConnected, and the dead handle is unregistered and closed at once so
// later sends do not keep hitting it.
func (r *Relay) Send(deviceID, channel, action string) (DeliveryResult, error) {
	if err := r.validate(deviceID, channel, action); err != nil {
		return NotConnected, err
	}

	h, ok := r.registry.Lookup(deviceID)
	if !ok {
		r.logger.Debug("command for offline device", "device_id", deviceID, "phase", channel)
		return NotConnected, nil
	}

	if err := h.Send(newCommand(channel, action)); err != nil {
		r.logger.Warn("command delivery failed",
			"device_id", deviceID,
			"phase", channel,
			"generation", h.Generation(),
			"error", err,
		)
		discard(r.registry, deviceID, h)
		return NotConnected, nil
	}

	r.logger.Info("command relayed", "device_id", deviceID, "phase", channel, "command", action)
	return Delivered, nil
}

func (r *Relay) validate(deviceID, channel, action string) error {
	if strings.TrimSpace(deviceID) == "" {
		return ErrInvalidDeviceID
	}
	if _, ok := r.channels[channel]; !ok {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidCommand, channel)
	}
	if strings.TrimSpace(action) == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidCommand)
	}
	return nil
}

// discard drops a handle whose transport failed a write. The guarded
// Unregister keeps a newer connection in place if one already replaced h;
// closing unblocks the handle's reader so its lifecycle ends promptly.
func discard(registry *Registry, deviceID string, h *Handle) {
	registry.Unregister(deviceID, h)
	_ = h.Close(websocket.CloseInternalServerErr, "write failed") //nolint:errcheck // transport already failed
}
