package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Record is one row of a Flux query result.
type Record struct {
	Time        time.Time
	Measurement string
	Field       string
	Value       any

	// Values holds every column of the row, including tags.
	Values map[string]any
}

// Query runs a Flux query and collects every row of every table.
func (c *Client) Query(ctx context.Context, flux string) ([]Record, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(flux) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrQueryFailed)
	}

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer result.Close()

	var records []Record
	for result.Next() {
		r := result.Record()
		records = append(records, Record{
			Time:        r.Time(),
			Measurement: r.Measurement(),
			Field:       r.Field(),
			Value:       r.Value(),
			Values:      r.Values(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return records, nil
}

// QuoteString renders s as a Flux string literal.
// Backslashes, double quotes and interpolation markers are escaped so
// caller-supplied values cannot change the shape of a query.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '$':
			// "${" starts interpolation in Flux strings.
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteByte('\\')
			}
			b.WriteByte(ch)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FormatTime renders t as an RFC3339 UTC literal for range() bounds.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
