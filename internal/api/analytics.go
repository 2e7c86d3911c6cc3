package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/phaselink-core/internal/telemetry"
)

// defaultPhase is used when an analytics request names no phase.
const defaultPhase = "A"

// analyticsKind binds a metric to the response key of its series.
type analyticsKind struct {
	metric    telemetry.Metric
	seriesKey string
}

var (
	analyticsPower  = analyticsKind{metric: telemetry.Power, seriesKey: "power_data"}
	analyticsEnergy = analyticsKind{metric: telemetry.Energy, seriesKey: "energy_data"}
)

// handleAnalytics serves the day's series and avg/max/min rollup for one
// metric. Query parameters: date_str (YYYY-MM-DD), phase (default A) and
// device_id (defaults to the caller's device when a token is sent).
func (s *Server) handleAnalytics(kind analyticsKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		date := strings.TrimSpace(q.Get("date_str"))
		if date == "" {
			writeBadRequest(w, "date_str is required (YYYY-MM-DD)")
			return
		}

		phase := strings.TrimSpace(q.Get("phase"))
		if phase == "" {
			phase = defaultPhase
		}

		deviceID := strings.TrimSpace(q.Get("device_id"))
		if deviceID == "" {
			if claims, ok := claimsFrom(r.Context()); ok {
				deviceID = claims.DeviceID
			}
		}
		if deviceID == "" {
			writeBadRequest(w, "device_id is required")
			return
		}

		report, err := s.telemetry.Analytics(r.Context(), kind.metric, date, phase, deviceID)
		if err != nil {
			s.writeTelemetryError(w, err, kind.metric.Name+" analytics failed")
			return
		}

		series := make([]map[string]any, 0, len(report.Series))
		for _, sample := range report.Series {
			var value any
			if sample.Value != nil {
				value = *sample.Value
			}
			series = append(series, map[string]any{
				"timestamp":       sample.Timestamp.UTC().Format(time.RFC3339Nano),
				kind.metric.Field: value,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"analytics_data": report.Analytics,
			kind.seriesKey:   series,
		})
	}
}
