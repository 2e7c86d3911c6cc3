package telemetry

import "errors"

// Sentinel errors for telemetry operations.
var (
	// ErrUnavailable is returned when no time-series store is configured.
	ErrUnavailable = errors.New("telemetry: store unavailable")

	// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("telemetry: invalid date")

	// ErrInvalidDevice is returned for an empty device identity.
	ErrInvalidDevice = errors.New("telemetry: invalid device id")

	// ErrNoData is returned when a day holds no raw data for the requested series.
	ErrNoData = errors.New("telemetry: no data")
)
