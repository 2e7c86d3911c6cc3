package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/influxdb"
)

// Measurement names.
const (
	measurementSensor = "sensor_data"

	// readingWindow is how far back QueryReadings looks.
	readingWindow = 24 * time.Hour
)

// Reading is one sensor sample from a device.
type Reading struct {
	Current float64 // I, amperes
	Voltage float64 // V, volts
	Power   float64 // P, watts
}

// WriteReading stores a reading stamped now and waits for the store to accept it.
func (s *Service) WriteReading(ctx context.Context, deviceID string, r Reading) error {
	if s.store == nil {
		return ErrUnavailable
	}
	if strings.TrimSpace(deviceID) == "" {
		return ErrInvalidDevice
	}

	err := s.store.WritePointSync(ctx, measurementSensor,
		map[string]string{"device_id": deviceID},
		map[string]any{"I": r.Current, "V": r.Voltage, "P": r.Power},
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing sensor reading: %w", err)
	}
	return nil
}

// QueryReadings returns the device's readings from the last 24 hours,
// grouped by RFC 3339 timestamp and then by field name.
func (s *Service) QueryReadings(ctx context.Context, deviceID string) (map[string]map[string]any, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(deviceID) == "" {
		return nil, ErrInvalidDevice
	}

	records, err := s.store.Query(ctx, readingsQuery(s.bucket, deviceID))
	if err != nil {
		return nil, fmt.Errorf("querying sensor readings: %w", err)
	}

	out := make(map[string]map[string]any)
	for _, r := range records {
		ts := r.Time.UTC().Format(time.RFC3339Nano)
		row, ok := out[ts]
		if !ok {
			row = make(map[string]any)
			out[ts] = row
		}
		row[r.Field] = r.Value
	}
	return out, nil
}

func readingsQuery(bucket, deviceID string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: -%s)
  |> filter(fn: (r) => r._measurement == %s)
  |> filter(fn: (r) => r.device_id == %s)`,
		influxdb.QuoteString(bucket),
		fluxDuration(readingWindow),
		influxdb.QuoteString(measurementSensor),
		influxdb.QuoteString(deviceID),
	)
}

// fluxDuration renders whole hours as a Flux duration literal.
func fluxDuration(d time.Duration) string {
	return fmt.Sprintf("%dh", int(d.Hours()))
}
