package telemetry

import (
	"github.com/nerrad567/phaselink-core/internal/link"
)

// Measurements written by StatusRecorder.
const (
	measurementPhaseStatus = "phase_status"
	measurementPresence    = "device_presence"
)

// PointWriter queues points without blocking. It is satisfied by *influxdb.Client.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// StatusRecorder keeps a history of phase states and device presence.
// It implements link.EventSink; every write is queued on the batched
// writer so the device's read loop is never held up by storage.
type StatusRecorder struct {
	writer PointWriter
}

var _ link.EventSink = (*StatusRecorder)(nil)

// NewStatusRecorder creates a recorder writing to w.
func NewStatusRecorder(w PointWriter) *StatusRecorder {
	return &StatusRecorder{writer: w}
}

// DeviceConnected records the device coming online.
func (r *StatusRecorder) DeviceConnected(deviceID, generation string) {
	r.writer.WritePoint(measurementPresence,
		map[string]string{"device_id": deviceID},
		map[string]any{"connected": true, "generation": generation})
}

// DeviceStatus records one point per channel in the push. Channels reported
// as unknown are skipped since a point needs at least one field value.
func (r *StatusRecorder) DeviceStatus(deviceID string, changed, _ link.Snapshot) {
	for _, phase := range changed.Channels() {
		state, known := changed.Value(phase)
		if !known {
			continue
		}
		r.writer.WritePoint(measurementPhaseStatus,
			map[string]string{"device_id": deviceID, "phase": phase},
			map[string]any{"state": state})
	}
}

// DeviceDisconnected records the device going offline. A superseded
// connection is not recorded since the device is still online.
func (r *StatusRecorder) DeviceDisconnected(deviceID, generation string, superseded bool) {
	if superseded {
		return
	}
	r.writer.WritePoint(measurementPresence,
		map[string]string{"device_id": deviceID},
		map[string]any{"connected": false, "generation": generation})
}
