// Package influxdb provides InfluxDB connectivity for PhaseLink.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, point writes, Flux queries and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Raw sensor readings posted by devices (current, voltage, power)
//   - Per-phase power and energy data and their daily rollups
//   - A history of phase states reported over the device link
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePoint("phase_status",
//	    map[string]string{"device_id": "meter-01", "phase": "A"},
//	    map[string]any{"state": "on"})
//
//	records, err := client.Query(ctx, `from(bucket: "phaselink") |> range(start: -1h)`)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Batched writes are non-blocking and report errors via a callback.
// Blocking writes, queries, connection and health check errors are returned directly.
//
// # Query Safety
//
// Values interpolated into Flux must go through QuoteString.
package influxdb
