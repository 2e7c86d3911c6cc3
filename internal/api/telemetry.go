package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/phaselink-core/internal/telemetry"
)

// handleWriteData stores a sensor reading for the caller's device.
// I, V and P are read from the query string.
func (s *Server) handleWriteData(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		writeUnauthorized(w, "missing bearer token")
		return
	}

	q := r.URL.Query()
	var reading telemetry.Reading
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"I", &reading.Current},
		{"V", &reading.Voltage},
		{"P", &reading.Power},
	} {
		v, err := strconv.ParseFloat(q.Get(f.name), 64)
		if err != nil {
			writeBadRequest(w, "query parameter "+f.name+" must be a number")
			return
		}
		*f.dst = v
	}

	if err := s.telemetry.WriteReading(r.Context(), claims.DeviceID, reading); err != nil {
		s.writeTelemetryError(w, err, "write failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Data written successfully",
		"device_id": claims.DeviceID,
	})
}

// handleQueryData returns the last 24 hours of readings for a device.
func (s *Server) handleQueryData(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("device_id"))
	if deviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	readings, err := s.telemetry.QueryReadings(r.Context(), deviceID)
	if err != nil {
		s.writeTelemetryError(w, err, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// writeTelemetryError maps telemetry errors to HTTP responses.
func (s *Server) writeTelemetryError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, telemetry.ErrUnavailable):
		writeUnavailable(w, "telemetry store is not configured")
	case errors.Is(err, telemetry.ErrInvalidDate):
		writeBadRequest(w, "invalid date format, use YYYY-MM-DD")
	case errors.Is(err, telemetry.ErrInvalidDevice):
		writeBadRequest(w, "device_id is required")
	case errors.Is(err, telemetry.ErrNoData):
		writeNotFound(w, "no data found for the requested day")
	default:
		s.logger.Error("telemetry "+action, "error", err)
		writeInternalError(w, "telemetry "+action)
	}
}
