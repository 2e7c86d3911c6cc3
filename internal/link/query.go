package link

import (
	"strings"
	"sync"
)

// Status is the answer to a status read.
type Status struct {
	// Snapshot is the last-known status of every channel.
	Snapshot Snapshot

	// Connected reports whether the device had a live connection at read time.
	// When false the snapshot is whatever the device last reported.
	Connected bool
}

// StatusService answers status reads from the cache without a round trip
// through the device.
//
// Each read of a connected device also sends the device a refresh request
// on a detached goroutine, so the next read sees fresher data. The caller
// never waits for that request and never sees its outcome.
type StatusService struct {
	registry *Registry
	cache    *StatusCache
	logger   Logger

	// refreshes tracks in-flight refresh goroutines for shutdown.
	refreshes sync.WaitGroup
}

// NewStatusService creates a status service over the shared registry and cache.
func NewStatusService(registry *Registry, cache *StatusCache) *StatusService {
	return &StatusService{
		registry: registry,
		cache:    cache,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *StatusService) SetLogger(logger Logger) {
	s.logger = loggerOrNoop(logger)
}

// GetStatus returns the cached snapshot for deviceID immediately.
//
// It returns ErrDeviceUnknown if the device has never connected. A device
// that connected before but is offline now still gets its last snapshot,
// with Connected false and no refresh attempted.
func (s *StatusService) GetStatus(deviceID string) (Status, error) {
	if strings.TrimSpace(deviceID) == "" {
		return Status{}, ErrInvalidDeviceID
	}

	h, connected := s.registry.Lookup(deviceID)

	snap, ok := s.cache.Read(deviceID)
	if !ok {
		return Status{}, ErrDeviceUnknown
	}

	if connected {
		s.refreshes.Add(1)
		go s.refresh(deviceID, h)
	}

	return Status{Snapshot: snap, Connected: connected}, nil
}

// refresh asks the device to push its status. Failures are logged only.
func (s *StatusService) refresh(deviceID string, h *Handle) {
	defer s.refreshes.Done()

	if err := h.Send(newStatusRequest()); err != nil {
		s.logger.Warn("status refresh request failed",
			"device_id", deviceID,
			"generation", h.Generation(),
			"error", err,
		)
		discard(s.registry, deviceID, h)
		return
	}
	s.logger.Debug("status refresh requested", "device_id", deviceID)
}

// Wait blocks until every refresh started so far has finished.
// It is used during shutdown and in tests.
func (s *StatusService) Wait() {
	s.refreshes.Wait()
}
