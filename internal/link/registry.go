package link

import (
	"sort"
	"sync"
)

// Registry maps each device identity to its single live Handle.
//
// Registering replaces any existing mapping; the replaced handle is not
// closed here, its own lifecycle goroutine tears it down. Removal only
// succeeds for the handle currently registered, so a stale connection
// finishing late cannot evict the connection that superseded it.
//
// All methods are thread-safe and perform no I/O under the lock.
type Registry struct {
	handles map[string]*Handle
	mu      sync.RWMutex
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = loggerOrNoop(logger)
}

// Register maps deviceID to h unconditionally and returns the handle it
// replaced, or nil.
func (r *Registry) Register(deviceID string, h *Handle) *Handle {
	r.mu.Lock()
	previous := r.handles[deviceID]
	r.handles[deviceID] = h
	r.mu.Unlock()

	if previous != nil && previous != h {
		r.logger.Info("device connection replaced",
			"device_id", deviceID,
			"previous", previous.Generation(),
			"current", h.Generation(),
		)
		return previous
	}
	return nil
}

// Unregister removes the mapping only if h is the handle currently
// registered for deviceID. It reports whether a mapping was removed.
func (r *Registry) Unregister(deviceID string, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.handles[deviceID]; ok && current == h {
		delete(r.handles, deviceID)
		return true
	}
	return false
}

// Lookup returns the live handle for deviceID.
func (r *Registry) Lookup(deviceID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[deviceID]
	return h, ok
}

// Count returns the number of connected devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// DeviceIDs returns the identities of all connected devices, sorted.
func (r *Registry) DeviceIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
