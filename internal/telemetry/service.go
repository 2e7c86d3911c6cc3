package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/phaselink-core/internal/infrastructure/influxdb"
)

// Store is the subset of the InfluxDB client the service uses.
// It is satisfied by *influxdb.Client.
type Store interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
	WritePointSync(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) error
	Query(ctx context.Context, flux string) ([]influxdb.Record, error)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service reads and writes telemetry for the HTTP API.
type Service struct {
	store  Store
	bucket string
	loc    *time.Location
	now    func() time.Time
	logger Logger
}

// NewService creates a telemetry service. A nil store makes every
// operation return ErrUnavailable. loc sets analytics day boundaries.
func NewService(store Store, bucket string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		bucket: bucket,
		loc:    loc,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	if logger == nil {
		s.logger = noopLogger{}
		return
	}
	s.logger = logger
}

// Available reports whether a store is configured.
func (s *Service) Available() bool {
	return s.store != nil
}

// Location returns the timezone used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}
