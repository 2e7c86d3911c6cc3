// Package telemetry stores and reads device measurements in InfluxDB.
//
// It covers three concerns:
//   - Sensor readings (current, voltage, power) posted by authenticated devices
//   - Daily power and energy analytics per phase, with stored rollups
//   - A history of phase states and presence reported over the device link
//
// Day boundaries for analytics are computed in the site's timezone and
// converted to UTC before they reach a query. Every caller-supplied value
// is quoted with influxdb.QuoteString.
package telemetry
