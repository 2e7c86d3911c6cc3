package link

// EventSink receives device lifecycle events from the Manager.
//
// Methods are called synchronously from the connection's own goroutine, so
// implementations must return quickly and must not call back into the Manager.
type EventSink interface {
	// DeviceConnected is called after a handshake is accepted and the
	// connection is registered.
	DeviceConnected(deviceID, generation string)

	// DeviceStatus is called after a status push has been applied.
	// changed holds only the channels in the push; current is the full
	// snapshot after the update.
	DeviceStatus(deviceID string, changed, current Snapshot)

	// DeviceDisconnected is called when a connection terminates.
	// superseded is true when a newer connection for the same device was
	// already registered, so the device is still online.
	DeviceDisconnected(deviceID, generation string, superseded bool)
}

// nopSink discards every event.
type nopSink struct{}

func (nopSink) DeviceConnected(string, string)          {}
func (nopSink) DeviceStatus(string, Snapshot, Snapshot) {}
func (nopSink) DeviceDisconnected(string, string, bool) {}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// DeviceConnected forwards to every sink.
func (m MultiSink) DeviceConnected(deviceID, generation string) {
	for _, s := range m {
		s.DeviceConnected(deviceID, generation)
	}
}

// DeviceStatus forwards to every sink.
func (m MultiSink) DeviceStatus(deviceID string, changed, current Snapshot) {
	for _, s := range m {
		s.DeviceStatus(deviceID, changed, current)
	}
}

// DeviceDisconnected forwards to every sink.
func (m MultiSink) DeviceDisconnected(deviceID, generation string, superseded bool) {
	for _, s := range m {
		s.DeviceDisconnected(deviceID, generation, superseded)
	}
}
