package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/influxdb"
)

// dateLayout is the accepted form of an analytics date.
const dateLayout = "2006-01-02"

// measurementPower holds per-phase power and energy samples written by devices.
const measurementPower = "power_data"

// Metric describes one analysable series and where its rollup is stored.
type Metric struct {
	// Name is the short name used in logs and responses ("power", "energy").
	Name string

	// Field is the raw field in power_data, and the key of each sample in responses.
	Field string

	// Rollup is the measurement daily rollups are written to.
	Rollup string

	// EmptyDayOK makes a day without samples an empty report rather than ErrNoData.
	EmptyDayOK bool
}

// Supported metrics.
var (
	Power  = Metric{Name: "power", Field: "power_watt", Rollup: "power_analytics"}
	Energy = Metric{Name: "energy", Field: "energy_kwh", Rollup: "energy_analytics", EmptyDayOK: true}
)

// rollupFields returns the avg/max/min field names, e.g. avg_power_watt.
func (m Metric) rollupFields() (avg, maxField, minField string) {
	return "avg_" + m.Field, "max_" + m.Field, "min_" + m.Field
}

// Sample is one raw data point. Value is nil when the stored value is not numeric.
type Sample struct {
	Timestamp time.Time
	Value     *float64
}

// Report is the analytics answer for one device, phase and day.
type Report struct {
	Metric    Metric
	Analytics map[string]float64
	Series    []Sample

	// Generated is true when the rollup was computed for this request
	// rather than read from storage.
	Generated bool
}

// DayBounds returns the UTC instants at which date starts and ends in loc.
func DayBounds(date string, loc *time.Location) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q, use YYYY-MM-DD", ErrInvalidDate, date)
	}
	next := day.AddDate(0, 0, 1)
	return day.UTC(), next.UTC(), nil
}

// Analytics returns the day's series and its avg/max/min rollup.
//
// For today (in the site timezone) the rollup is always recomputed and
// stored, since the day is still filling up. For past days the stored rollup
// is used, falling back to computing and storing it when none exists.
// ErrNoData is returned when the day has no raw samples at all, unless the
// metric is EmptyDayOK, in which case the report is empty and nothing is stored.
func (s *Service) Analytics(ctx context.Context, m Metric, date, phase, deviceID string) (*Report, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	if strings.TrimSpace(deviceID) == "" {
		return nil, ErrInvalidDevice
	}
	start, end, err := DayBounds(date, s.loc)
	if err != nil {
		return nil, err
	}

	series, err := s.rawSeries(ctx, m, start, end, phase, deviceID)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 && m.EmptyDayOK {
		return &Report{Metric: m, Analytics: map[string]float64{}, Series: []Sample{}}, nil
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no %s data for %s", ErrNoData, m.Name, date)
	}

	report := &Report{Metric: m, Series: series}

	today := s.now().In(s.loc).Format(dateLayout)
	if today != start.In(s.loc).Format(dateLayout) {
		stored, err := s.storedRollup(ctx, m, start, end, phase, deviceID)
		if err != nil {
			return nil, err
		}
		if len(stored) > 0 {
			report.Analytics = stored
			return report, nil
		}
		s.logger.Debug("no stored rollup, generating", "metric", m.Name, "date", date, "device_id", deviceID)
	}

	report.Analytics = s.generateRollup(ctx, m, series, end, phase, deviceID)
	report.Generated = true
	return report, nil
}

// generateRollup computes avg/max/min over the numeric samples and stores
// the result inside the day ending at end, so a later read of that day finds
// it. A failed write is logged; the computed values are still returned.
func (s *Service) generateRollup(ctx context.Context, m Metric, series []Sample, end time.Time, phase, deviceID string) map[string]float64 {
	avgField, maxField, minField := m.rollupFields()

	var sum, lo, hi float64
	n := 0
	for _, sm := range series {
		if sm.Value == nil {
			continue
		}
		v := *sm.Value
		if n == 0 || v < lo {
			lo = v
		}
		if n == 0 || v > hi {
			hi = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return map[string]float64{}
	}

	rollup := map[string]float64{
		avgField: sum / float64(n),
		maxField: hi,
		minField: lo,
	}

	fields := make(map[string]any, len(rollup))
	for k, v := range rollup {
		fields[k] = v
	}
	stamp := s.now().UTC()
	if !stamp.Before(end) {
		stamp = end.Add(-time.Second)
	}
	err := s.store.WritePointSync(ctx, m.Rollup,
		map[string]string{"device_id": deviceID, "phase": phase},
		fields,
		stamp,
	)
	if err != nil {
		s.logger.Warn("storing analytics rollup failed", "metric", m.Name, "device_id", deviceID, "error", err)
	}
	return rollup
}

func (s *Service) storedRollup(ctx context.Context, m Metric, start, end time.Time, phase, deviceID string) (map[string]float64, error) {
	records, err := s.store.Query(ctx, rollupQuery(s.bucket, m, start, end, phase, deviceID))
	if err != nil {
		return nil, fmt.Errorf("querying %s rollup: %w", m.Name, err)
	}

	// Later rollups for the same day overwrite earlier ones.
	sort.SliceStable(records, func(i, j int) bool { return records[i].Time.Before(records[j].Time) })

	out := make(map[string]float64, len(records))
	for _, r := range records {
		if v, ok := toFloat(r.Value); ok {
			out[r.Field] = v
		}
	}
	return out, nil
}

func (s *Service) rawSeries(ctx context.Context, m Metric, start, end time.Time, phase, deviceID string) ([]Sample, error) {
	records, err := s.store.Query(ctx, seriesQuery(s.bucket, m, start, end, phase, deviceID))
	if err != nil {
		return nil, fmt.Errorf("querying %s data: %w", m.Name, err)
	}

	series := make([]Sample, 0, len(records))
	for _, r := range records {
		sm := Sample{Timestamp: r.Time.UTC()}
		if v, ok := toFloat(r.Value); ok {
			sm.Value = &v
		}
		series = append(series, sm)
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
	return series, nil
}

func seriesQuery(bucket string, m Metric, start, end time.Time, phase, deviceID string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s)
  |> filter(fn: (r) => r.phase == %s and r.device_id == %s)
  |> filter(fn: (r) => r._field == %s)
  |> group()
  |> sort(columns: ["_time"])`,
		influxdb.QuoteString(bucket),
		influxdb.FormatTime(start), influxdb.FormatTime(end),
		influxdb.QuoteString(measurementPower),
		influxdb.QuoteString(phase), influxdb.QuoteString(deviceID),
		influxdb.QuoteString(m.Field),
	)
}

func rollupQuery(bucket string, m Metric, start, end time.Time, phase, deviceID string) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s)
  |> filter(fn: (r) => r.phase == %s and r.device_id == %s)`,
		influxdb.QuoteString(bucket),
		influxdb.FormatTime(start), influxdb.FormatTime(end),
		influxdb.QuoteString(m.Rollup),
		influxdb.QuoteString(phase), influxdb.QuoteString(deviceID),
	)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
