package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues a point stamped now on the batched writer.
// The write is non-blocking; failures surface through SetOnError.
//
// Example:
//
//	client.WritePoint("phase_status",
//	    map[string]string{"device_id": "meter-01", "phase": "A"},
//	    map[string]any{"state": "on"})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp on the batched writer.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// WritePointSync writes one point and waits for the server to accept it.
// Use it where the caller must know whether the data was stored.
func (c *Client) WritePointSync(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	if err := c.blockingWrite.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
