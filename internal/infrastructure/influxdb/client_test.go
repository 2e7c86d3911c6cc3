package influxdb_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "phaselink-dev-token",
		Org:           "phaselink",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(context.Background(), testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func connect(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)
	client := connect(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if client.Bucket() != "telemetry" {
		t.Errorf("Bucket() = %q, want telemetry", client.Bucket())
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect() with default batch settings")
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)
	client := connect(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	skipIfNoInfluxDB(t)
	client := connect(t)
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Write and Query Tests
// =============================================================================

func TestWritePointAndQuery(t *testing.T) {
	skipIfNoInfluxDB(t)
	client := connect(t)

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	deviceID := fmt.Sprintf("test-%d", time.Now().UnixNano())
	client.WritePoint("phase_status",
		map[string]string{"device_id": deviceID, "phase": "A"},
		map[string]any{"state": "on"})
	client.Flush()

	mu.Lock()
	if writeErr != nil {
		t.Fatalf("async write error = %v", writeErr)
	}
	mu.Unlock()

	flux := fmt.Sprintf(`from(bucket: %s)
  |> range(start: -5m)
  |> filter(fn: (r) => r._measurement == "phase_status" and r.device_id == %s)`,
		influxdb.QuoteString(client.Bucket()), influxdb.QuoteString(deviceID))

	records, err := client.Query(context.Background(), flux)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Query() returned %d records, want 1", len(records))
	}
	if records[0].Field != "state" || records[0].Value != "on" {
		t.Errorf("record = %+v", records[0])
	}
	if records[0].Values["phase"] != "A" {
		t.Errorf("phase tag = %v, want A", records[0].Values["phase"])
	}
}

func TestWritePointSync(t *testing.T) {
	skipIfNoInfluxDB(t)
	client := connect(t)

	err := client.WritePointSync(context.Background(), "sensor_data",
		map[string]string{"device_id": "sync-test"},
		map[string]any{"I": 1.5, "V": 230.0, "P": 345.0},
		time.Now())
	if err != nil {
		t.Errorf("WritePointSync() error = %v", err)
	}
}

func TestWriteAfterClose(t *testing.T) {
	skipIfNoInfluxDB(t)
	client := connect(t)
	client.Close()

	// Batched writes after close are dropped silently.
	client.WritePoint("phase_status", map[string]string{"device_id": "x"}, map[string]any{"state": "on"})
	client.Flush()

	err := client.WritePointSync(context.Background(), "sensor_data", nil, map[string]any{"P": 1.0}, time.Now())
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("WritePointSync() error = %v, want ErrNotConnected", err)
	}
	if _, err := client.Query(context.Background(), "from(bucket: \"x\")"); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("Query() error = %v, want ErrNotConnected", err)
	}
}

func TestQuery_NilClient(t *testing.T) {
	var client *influxdb.Client
	if _, err := client.Query(context.Background(), "x"); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("Query() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Flux Helpers
// =============================================================================

func TestQuoteString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "meter-01", `"meter-01"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"injection", `x") |> drop() //`, `"x\") |> drop() //"`},
		{"interpolation", "${secret}", `"\${secret}"`},
		{"dollar alone", "cost $5", `"cost $5"`},
		{"newline", "a\nb", `"a\nb"`},
		{"empty", "", `""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := influxdb.QuoteString(tt.input); got != tt.want {
				t.Errorf("QuoteString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, loc)

	if got := influxdb.FormatTime(ts); got != "2024-02-29T18:30:00Z" {
		t.Errorf("FormatTime() = %s", got)
	}
}
